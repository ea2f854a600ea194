package domain

import "strings"

// ValidationResult — нормализованный ответ upstream-сервиса пользователей.
// Любая ошибка апстрима превращается в Valid=false с Message.
type ValidationResult struct {
	Valid    bool
	UserID   string
	Username string
	Email    string
	Scopes   []string
	Message  string
}

// UserRecord — запись пользователя из GET /internal/v1/users/{id}.
type UserRecord struct {
	UserID   string   `json:"user_id"`
	Username string   `json:"username"`
	Email    string   `json:"email"`
	Status   string   `json:"status"`
	Active   *bool    `json:"active"`
	Scopes   []string `json:"scopes"` // nil — поле отсутствует, [] — явно пустой список
}

// IsActive: активен, если status == "ACTIVE" (без учета регистра) или active == true.
func (u *UserRecord) IsActive() bool {
	if strings.EqualFold(u.Status, "ACTIVE") {
		return true
	}
	return u.Active != nil && *u.Active
}

// DisplayName возвращает username, а при его отсутствии — email.
func (u *UserRecord) DisplayName() string {
	if u.Username != "" {
		return u.Username
	}
	return u.Email
}

// ServiceInfo — метаданные сервиса для /, /health, /info.
type ServiceInfo struct {
	Service          string `json:"service"`
	Version          string `json:"version"`
	Environment      string `json:"environment"`
	Debug            bool   `json:"debug"`
	JWTAlgorithm     string `json:"jwt_algorithm"`
	JWTExpireMinutes int    `json:"jwt_expire_minutes"`
	APIVersion       string `json:"api_version"`
}
