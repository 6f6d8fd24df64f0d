package validation

import (
	"fmt"
	"strings"
	"unicode"
)

// ValidateEmail проверяет синтаксис email: ровно один @, непустая локальная часть,
// точка в доменной части, без пробельных символов.
// Значение не нормализуется: email используется как ключ в том виде, в каком пришёл.
func ValidateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("email обязателен")
	}

	if strings.IndexFunc(email, unicode.IsSpace) >= 0 {
		return fmt.Errorf("email не должен содержать пробелы")
	}

	if strings.Count(email, "@") != 1 {
		return fmt.Errorf("email должен содержать ровно один символ @")
	}

	localPart, domainPart, _ := strings.Cut(email, "@")
	if localPart == "" {
		return fmt.Errorf("локальная часть email не может быть пустой")
	}

	// Домен вида "x.y": точка не в начале и не в конце.
	dot := strings.LastIndex(domainPart, ".")
	if dot <= 0 || dot == len(domainPart)-1 {
		return fmt.Errorf("доменная часть email должна содержать точку")
	}

	return nil
}
