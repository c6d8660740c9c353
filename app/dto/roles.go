package dto

type Role string

const (
	RoleMaster Role = "MASTER"
	RoleAdmin  Role = "ADMIN"
	RoleViewer Role = "VIEWER"
)

var AllRoles = []Role{RoleMaster, RoleAdmin, RoleViewer}

func (r Role) Valid() bool {
	switch r {
	case RoleMaster, RoleAdmin, RoleViewer:
		return true
	default:
		return false
	}
}

// Record statuses as stored in the spreadsheet.
const (
	StatusActive   = "ACTIVO"
	StatusInactive = "INACTIVO"
)

// Master key states.
const (
	MasterkeyActive   = "ACTIVA"
	MasterkeyInactive = "INACTIVA"
)

const (
	UserTypeGlobal = "GLOBAL"
	UserTypeHouse  = "HOUSE"
)

const (
	MasterkeyLevelGlobal = "GLOBAL"
	MasterkeyLevelHouse  = "HOUSE"
	MasterkeyLevelDevice = "DEVICE"
)

// User interaction event types, A-Z.
var EventTypes = []string{
	"ACCESS_GRANTED",
	"INACTIVE_USER",
	"INVALID_TOKEN_TYPE",
	"MASTERKEY_ACCESS",
	"MASTERKEY_ACCESS_OFFLINE",
	"NO_TOKENS",
	"NOT_IN_HOUSE_USER",
	"OUTSIDE_TIME_WINDOW",
	"UNREGISTERED_USER",
}

const (
	EventAccessGranted          = "ACCESS_GRANTED"
	EventMasterkeyAccess        = "MASTERKEY_ACCESS"
	EventMasterkeyAccessOffline = "MASTERKEY_ACCESS_OFFLINE"
)

var eventTypeNames = map[string]string{
	"ACCESS_GRANTED":           "Access granted",
	"INACTIVE_USER":            "Inactive user",
	"INVALID_TOKEN_TYPE":       "Invalid token type",
	"MASTERKEY_ACCESS":         "Master key",
	"MASTERKEY_ACCESS_OFFLINE": "Master key (offline)",
	"NO_TOKENS":                "No tokens",
	"NOT_IN_HOUSE_USER":        "Not in house",
	"OUTSIDE_TIME_WINDOW":      "Outside time window",
	"UNREGISTERED_USER":        "Unregistered user",
}

func EventTypeName(eventType string) string {
	if name, ok := eventTypeNames[eventType]; ok {
		return name
	}

	return eventType
}
