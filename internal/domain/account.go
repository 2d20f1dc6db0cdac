package domain

import (
	"strings"
	"time"
)

// Role определяет уровень доступа учётной записи.
type Role string

const (
	// RoleAdmin управляет каталогом и статусами заказов.
	RoleAdmin Role = "admin"
	// RoleCustomer: покупатель, видит только свои заказы.
	RoleCustomer Role = "customer"
)

// Valid проверяет, что роль относится к поддерживаемым значениям.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleCustomer:
		return true
	default:
		return false
	}
}

// Account: учётная запись покупателя или администратора.
type Account struct {
	ID       string
	Username string
	// PasswordHash хранит только одностороннее представление пароля.
	PasswordHash string
	Role         Role
	Email        string
	Phone        string
	SkinType     string
	CreatedAt    time.Time
}

// Profile: публичное представление аккаунта без учётных данных.
type Profile struct {
	ID       string
	Username string
	Email    string
	Role     Role
	Phone    string
	SkinType string
}

// Profile отбрасывает credential и возвращает данные для ответа клиенту.
func (a Account) Profile() Profile {
	return Profile{
		ID:       a.ID,
		Username: a.Username,
		Email:    a.Email,
		Role:     a.Role,
		Phone:    a.Phone,
		SkinType: a.SkinType,
	}
}

// ProfilePatch описывает частичное обновление профиля. nil: поле не меняется.
type ProfilePatch struct {
	Email    *string
	Phone    *string
	SkinType *string
}

// Apply применяет изменения к аккаунту.
func (p ProfilePatch) Apply(a *Account) {
	if p.Email != nil {
		a.Email = strings.TrimSpace(*p.Email)
	}
	if p.Phone != nil {
		a.Phone = strings.TrimSpace(*p.Phone)
	}
	if p.SkinType != nil {
		a.SkinType = strings.TrimSpace(*p.SkinType)
	}
}

// Validate проверяет поля профиля.
func (p ProfilePatch) Validate() error {
	fields := map[string]string{}
	if p.Email != nil {
		if email := strings.TrimSpace(*p.Email); email != "" && !strings.Contains(email, "@") {
			fields["email"] = "must be a valid e-mail address"
		}
	}
	if p.Phone != nil && len(strings.TrimSpace(*p.Phone)) > 20 {
		fields["phone"] = "must be at most 20 characters"
	}
	if len(fields) > 0 {
		return NewValidationError(fields)
	}
	return nil
}
