package types

type UserResponse struct {
	ID            uint    `json:"id"`
	Name          string  `json:"name"`
	FeishuUserID  string  `json:"feishu_user_id"`
	Email         *string `json:"email"`
	IsAdmin       bool    `json:"is_admin"`
	IsTrusted     bool    `json:"is_trusted"`
	PersonalToken string  `json:"personal_token,omitempty"`
}
