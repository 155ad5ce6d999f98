package event

const TwoFactorEnabledDestination string = "twofactor_enabled"
const TwoFactorDisabledDestination string = "twofactor_disabled"
const TwoFactorPhoneVerifiedDestination string = "twofactor_phone_verified"

type TwoFactorEnabledMessage struct {
	UserID int64 `json:"user_id"`
}

type TwoFactorDisabledMessage struct {
	UserID int64 `json:"user_id"`
}

type TwoFactorPhoneVerifiedMessage struct {
	UserID int64 `json:"user_id"`
}
