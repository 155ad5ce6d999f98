package entity

// Method identifies which credential a verification attempt presents.
type Method string

const (
	// MethodUnknown means the method is not recognized.
	MethodUnknown Method = ""

	// MethodTOTP is an authenticator-app time-based code.
	MethodTOTP Method = "totp"

	// MethodBackup is a single-use backup code.
	MethodBackup Method = "backup"
)

func (m Method) String() string {
	return string(m)
}

// MethodFromString parses a verification method, returning MethodUnknown
// for anything unrecognized.
func MethodFromString(s string) Method {
	switch s {
	case "totp":
		return MethodTOTP
	case "backup":
		return MethodBackup
	default:
		return MethodUnknown
	}
}

// Channel identifies an out-of-band code delivery channel.
type Channel string

// ChannelSMS delivers codes by text message.
const ChannelSMS Channel = "sms"

func (c Channel) String() string {
	return string(c)
}
