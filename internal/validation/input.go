package validation

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// Константы валидации
const (
	MinUserTagLength     = 3
	MaxUserTagLength     = 30
	MinFullNameLength    = 2
	MaxFullNameLength    = 100
	MinItemsLength       = 3
	MaxItemsLength       = 2000
	MaxDescriptionLength = 5000
	MinDescriptionLength = 10
	MaxResolutionLength  = 2000
	MinAmount            = 1.0
	MaxAmount            = 100000000.0 // 100 миллионов
	MaxPhoneLength       = 20
)

// ValidateLength проверяет длину строки.
func ValidateLength(fieldName, value string, min, max int) error {
	length := utf8.RuneCountInString(value)
	if min > 0 && length < min {
		return fmt.Errorf("%s должен быть не менее %d символов", fieldName, min)
	}
	if max > 0 && length > max {
		return fmt.Errorf("%s должен быть не более %d символов", fieldName, max)
	}
	return nil
}

// ValidateEmail проверяет формат email.
func ValidateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("email обязателен")
	}

	email = strings.TrimSpace(email)
	email = strings.ToLower(email)

	// Базовая проверка формата
	if !strings.Contains(email, "@") {
		return fmt.Errorf("email должен содержать символ @")
	}

	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return fmt.Errorf("некорректный формат email")
	}

	localPart := parts[0]
	domainPart := parts[1]

	if len(localPart) == 0 || len(localPart) > 64 {
		return fmt.Errorf("локальная часть email должна быть от 1 до 64 символов")
	}

	if len(domainPart) == 0 || len(domainPart) > 255 {
		return fmt.Errorf("доменная часть email должна быть от 1 до 255 символов")
	}

	if !strings.Contains(domainPart, ".") {
		return fmt.Errorf("доменная часть email должна содержать точку")
	}

	// Проверка на валидные символы в локальной части
	emailRegex := regexp.MustCompile(`^[a-z0-9._+-]+$`)
	if !emailRegex.MatchString(localPart) {
		return fmt.Errorf("локальная часть email содержит недопустимые символы")
	}

	// Проверка на валидные символы в доменной части
	domainRegex := regexp.MustCompile(`^[a-z0-9.-]+\.[a-z]{2,}$`)
	if !domainRegex.MatchString(domainPart) {
		return fmt.Errorf("доменная часть email имеет некорректный формат")
	}

	return nil
}

// ValidateNonEmpty проверяет, что строка не пустая.
func ValidateNonEmpty(fieldName, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s не может быть пустым", fieldName)
	}
	return nil
}

// ValidateUserTag проверяет уникальный тег пользователя.
func ValidateUserTag(userTag string) error {
	if userTag == "" {
		return fmt.Errorf("тег пользователя обязателен")
	}

	userTag = strings.TrimSpace(userTag)

	// Проверка длины
	if err := ValidateLength("тег пользователя", userTag, MinUserTagLength, MaxUserTagLength); err != nil {
		return err
	}

	// Проверка на допустимые символы (только буквы, цифры и подчеркивание)
	tagRegex := regexp.MustCompile(`^[a-zA-Z0-9_]+$`)
	if !tagRegex.MatchString(userTag) {
		return fmt.Errorf("тег пользователя может содержать только буквы, цифры и подчеркивание")
	}

	// Проверка, что не начинается с цифры
	if unicode.IsDigit(rune(userTag[0])) {
		return fmt.Errorf("тег пользователя не может начинаться с цифры")
	}

	return nil
}

// ValidateFullName проверяет полное имя пользователя.
func ValidateFullName(fullName string) error {
	if fullName == "" {
		return fmt.Errorf("имя обязательно")
	}

	fullName = strings.TrimSpace(fullName)

	// Проверка длины
	if err := ValidateLength("имя", fullName, MinFullNameLength, MaxFullNameLength); err != nil {
		return err
	}

	// Проверка на недопустимые символы
	nameRegex := regexp.MustCompile(`^[a-zA-Zа-яА-ЯёЁ0-9\s\-_.,'()]+$`)
	if !nameRegex.MatchString(fullName) {
		return fmt.Errorf("имя содержит недопустимые символы")
	}

	return nil
}

// ValidatePhone проверяет номер телефона.
func ValidatePhone(phone string) error {
	if phone == "" {
		return nil
	}

	phone = strings.TrimSpace(phone)

	if utf8.RuneCountInString(phone) > MaxPhoneLength {
		return fmt.Errorf("номер телефона не может быть длиннее %d символов", MaxPhoneLength)
	}

	phoneRegex := regexp.MustCompile(`^\+?[0-9\s\-()]{7,}$`)
	if !phoneRegex.MatchString(phone) {
		return fmt.Errorf("некорректный формат номера телефона")
	}

	return nil
}

// ValidateAmount проверяет денежную сумму.
func ValidateAmount(amount float64) error {
	if amount < MinAmount {
		return fmt.Errorf("сумма должна быть не менее %.0f", MinAmount)
	}
	if amount > MaxAmount {
		return fmt.Errorf("сумма не может превышать %.0f", MaxAmount)
	}
	return nil
}

// ValidateEscrowItems проверяет описание предмета сделки.
func ValidateEscrowItems(items string) error {
	if items == "" {
		return fmt.Errorf("описание предмета сделки обязательно")
	}

	items = strings.TrimSpace(items)

	if err := ValidateLength("описание предмета сделки", items, MinItemsLength, MaxItemsLength); err != nil {
		return err
	}

	return nil
}

// ValidateDeliveryDate проверяет дату доставки в формате YYYY-MM-DD.
func ValidateDeliveryDate(deliveryDate string) error {
	if deliveryDate == "" {
		return fmt.Errorf("дата доставки обязательна")
	}

	parsed, err := time.Parse("2006-01-02", deliveryDate)
	if err != nil {
		return fmt.Errorf("дата доставки должна быть в формате YYYY-MM-DD")
	}

	today := time.Now().Truncate(24 * time.Hour)
	if parsed.Before(today) {
		return fmt.Errorf("дата доставки не может быть в прошлом")
	}

	return nil
}

// ValidateDisputeDescription проверяет описание спора.
func ValidateDisputeDescription(description string) error {
	if description == "" {
		return fmt.Errorf("описание спора обязательно")
	}

	description = strings.TrimSpace(description)

	if err := ValidateLength("описание спора", description, MinDescriptionLength, MaxDescriptionLength); err != nil {
		return err
	}

	return nil
}

// ValidateResolution проверяет текст решения по спору.
func ValidateResolution(resolution string) error {
	if resolution == "" {
		return fmt.Errorf("текст решения обязателен")
	}

	resolution = strings.TrimSpace(resolution)

	if err := ValidateLength("текст решения", resolution, 1, MaxResolutionLength); err != nil {
		return err
	}

	return nil
}

// ValidateOTPCode проверяет формат одноразового кода.
func ValidateOTPCode(code string) error {
	if code == "" {
		return fmt.Errorf("код подтверждения обязателен")
	}

	otpRegex := regexp.MustCompile(`^[0-9]{6}$`)
	if !otpRegex.MatchString(code) {
		return fmt.Errorf("код подтверждения должен состоять из 6 цифр")
	}

	return nil
}

// ValidateAccountNumber проверяет номер банковского счёта.
func ValidateAccountNumber(accountNumber string) error {
	if accountNumber == "" {
		return fmt.Errorf("номер счёта обязателен")
	}

	accountRegex := regexp.MustCompile(`^[0-9]{10}$`)
	if !accountRegex.MatchString(accountNumber) {
		return fmt.Errorf("номер счёта должен состоять из 10 цифр")
	}

	return nil
}
