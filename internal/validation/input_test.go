package validation

import (
	"strings"
	"testing"
	"time"
)

func TestValidateEmail(t *testing.T) {
	cases := []struct {
		name    string
		email   string
		wantErr bool
	}{
		{"валидный", "ivan@example.com", false},
		{"с плюсом", "ivan+tag@example.com", false},
		{"верхний регистр", "IVAN@EXAMPLE.COM", false},
		{"пустой", "", true},
		{"без @", "ivan.example.com", true},
		{"два @", "ivan@@example.com", true},
		{"без точки в домене", "ivan@localhost", true},
		{"пробел в локальной части", "iv an@example.com", true},
		{"слишком длинная локальная часть", strings.Repeat("a", 65) + "@example.com", true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateEmail(tc.email)
			if tc.wantErr && err == nil {
				t.Errorf("ValidateEmail(%q): ожидалась ошибка", tc.email)
			}
			if !tc.wantErr && err != nil {
				t.Errorf("ValidateEmail(%q): %v", tc.email, err)
			}
		})
	}
}

func TestValidateUserTag(t *testing.T) {
	cases := []struct {
		name    string
		tag     string
		wantErr bool
	}{
		{"валидный", "ivan_petrov", false},
		{"с цифрами", "ivan2024", false},
		{"минимальная длина", "abc", false},
		{"пустой", "", true},
		{"слишком короткий", "ab", true},
		{"слишком длинный", strings.Repeat("a", 31), true},
		{"начинается с цифры", "1ivan", true},
		{"дефис", "ivan-petrov", true},
		{"кириллица", "иван", true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateUserTag(tc.tag)
			if tc.wantErr && err == nil {
				t.Errorf("ValidateUserTag(%q): ожидалась ошибка", tc.tag)
			}
			if !tc.wantErr && err != nil {
				t.Errorf("ValidateUserTag(%q): %v", tc.tag, err)
			}
		})
	}
}

func TestValidateFullName(t *testing.T) {
	cases := []struct {
		name     string
		fullName string
		wantErr  bool
	}{
		{"латиница", "John Smith", false},
		{"кириллица", "Иван Петров", false},
		{"с дефисом", "Анна-Мария", false},
		{"пустое", "", true},
		{"одна буква", "А", true},
		{"недопустимые символы", "Иван <script>", true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateFullName(tc.fullName)
			if tc.wantErr && err == nil {
				t.Errorf("ValidateFullName(%q): ожидалась ошибка", tc.fullName)
			}
			if !tc.wantErr && err != nil {
				t.Errorf("ValidateFullName(%q): %v", tc.fullName, err)
			}
		})
	}
}

func TestValidatePhone(t *testing.T) {
	cases := []struct {
		name    string
		phone   string
		wantErr bool
	}{
		{"пустой допустим", "", false},
		{"международный", "+79991234567", false},
		{"с пробелами и скобками", "+7 (999) 123-45-67", false},
		{"буквы", "phone123", true},
		{"слишком короткий", "+7999", true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidatePhone(tc.phone)
			if tc.wantErr && err == nil {
				t.Errorf("ValidatePhone(%q): ожидалась ошибка", tc.phone)
			}
			if !tc.wantErr && err != nil {
				t.Errorf("ValidatePhone(%q): %v", tc.phone, err)
			}
		})
	}
}

func TestValidateAmount(t *testing.T) {
	cases := []struct {
		name    string
		amount  float64
		wantErr bool
	}{
		{"минимум", 1, false},
		{"обычная", 5000.50, false},
		{"максимум", 100000000, false},
		{"ноль", 0, true},
		{"отрицательная", -100, true},
		{"выше максимума", 100000001, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateAmount(tc.amount)
			if tc.wantErr && err == nil {
				t.Errorf("ValidateAmount(%v): ожидалась ошибка", tc.amount)
			}
			if !tc.wantErr && err != nil {
				t.Errorf("ValidateAmount(%v): %v", tc.amount, err)
			}
		})
	}
}

func TestValidateDeliveryDate(t *testing.T) {
	future := time.Now().AddDate(0, 0, 7).Format("2006-01-02")
	past := time.Now().AddDate(0, 0, -7).Format("2006-01-02")

	cases := []struct {
		name    string
		date    string
		wantErr bool
	}{
		{"будущая дата", future, false},
		{"пустая", "", true},
		{"прошлая дата", past, true},
		{"неверный формат", "07.09.2026", true},
		{"не дата", "скоро", true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateDeliveryDate(tc.date)
			if tc.wantErr && err == nil {
				t.Errorf("ValidateDeliveryDate(%q): ожидалась ошибка", tc.date)
			}
			if !tc.wantErr && err != nil {
				t.Errorf("ValidateDeliveryDate(%q): %v", tc.date, err)
			}
		})
	}
}

func TestValidateOTPCode(t *testing.T) {
	cases := []struct {
		name    string
		code    string
		wantErr bool
	}{
		{"валидный", "123456", false},
		{"пустой", "", true},
		{"короткий", "12345", true},
		{"длинный", "1234567", true},
		{"буквы", "12345a", true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateOTPCode(tc.code)
			if tc.wantErr && err == nil {
				t.Errorf("ValidateOTPCode(%q): ожидалась ошибка", tc.code)
			}
			if !tc.wantErr && err != nil {
				t.Errorf("ValidateOTPCode(%q): %v", tc.code, err)
			}
		})
	}
}

func TestValidateAccountNumber(t *testing.T) {
	cases := []struct {
		name    string
		account string
		wantErr bool
	}{
		{"валидный", "0123456789", false},
		{"пустой", "", true},
		{"короткий", "123456789", true},
		{"длинный", "12345678901", true},
		{"буквы", "12345abcde", true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateAccountNumber(tc.account)
			if tc.wantErr && err == nil {
				t.Errorf("ValidateAccountNumber(%q): ожидалась ошибка", tc.account)
			}
			if !tc.wantErr && err != nil {
				t.Errorf("ValidateAccountNumber(%q): %v", tc.account, err)
			}
		})
	}
}

func TestValidatePassword(t *testing.T) {
	cases := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{"валидный", "Password1", false},
		{"короткий", "Pass1", true},
		{"без заглавных", "password1", true},
		{"без строчных", "PASSWORD1", true},
		{"без цифр", "Passwords", true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidatePassword(tc.password)
			if tc.wantErr && err == nil {
				t.Errorf("ValidatePassword(%q): ожидалась ошибка", tc.password)
			}
			if !tc.wantErr && err != nil {
				t.Errorf("ValidatePassword(%q): %v", tc.password, err)
			}
		})
	}
}
