package backend

// Envelope is the part every backend response carries.
type Envelope struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

type Admin struct {
	Email  string `json:"email"`
	Role   string `json:"role"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

type ValidateAdminResponse struct {
	Envelope
	Admin *Admin `json:"admin"`
}

// AdminRecord is a row of the ADMINS sheet as listed by getAdmins.
type AdminRecord struct {
	AdminEmail string `json:"admin_email"`
	Role       string `json:"role"`
	Status     string `json:"status"`
	Name       string `json:"name,omitempty"`
}

type User struct {
	UID           string             `json:"uid"`
	UserName      string             `json:"user_name"`
	Status        string             `json:"status"`
	UserType      string             `json:"user_type"`
	UserResidence string             `json:"user_residence"`
	Tokens        map[string]FlexInt `json:"tokens"`
}

// Balance returns the user's balance for a token type, zero when absent.
func (u User) Balance(tokenType string) int {
	return int(u.Tokens[tokenType])
}

type Device struct {
	Esp32ID         string    `json:"esp32_id"`
	Location        string    `json:"location"`
	TokenType       string    `json:"token_type"`
	HouseID         string    `json:"house_id"`
	Active          FlexBool  `json:"active"`
	TimeLimitMin    FlexInt   `json:"time_limit_min"`
	ReconnectSec    FlexInt   `json:"reconnect_sec"`
	WifiSSID        string    `json:"wifi_ssid"`
	WifiPassword    string    `json:"wifi_password"`
	TimeWindowStart ClockTime `json:"time_window_start"`
	TimeWindowEnd   ClockTime `json:"time_window_end"`
	LastSeen        string    `json:"last_seen"`
}

const (
	DefaultWindowStart = "08:00"
	DefaultWindowEnd   = "23:00"
)

type House struct {
	HouseID       string     `json:"house_id"`
	HouseImg      string     `json:"house_img"`
	HouseStreet   string     `json:"house_street"`
	HouseNumber   FlexString `json:"house_number"`
	HouseExtra    string     `json:"house_extra"`
	HousePostcode FlexString `json:"house_postcode"`
	HouseLat      FlexString `json:"house_lat"`
	HouseLong     FlexString `json:"house_long"`
}

type TokenType struct {
	TokenType      string `json:"token_type"`
	TokenName      string `json:"token_name"`
	Description    string `json:"description"`
	Status         string `json:"status"`
	TokenTypeColor string `json:"token_type_color"`
}

type Masterkey struct {
	MasterkeyID     string `json:"masterkey_id"`
	MasterkeyLevel  string `json:"masterkey_level"`
	LevelTarget     string `json:"level_target"`
	State           string `json:"state"`
	MasterkeyHolder string `json:"masterkey_holder"`
}

type LogEntry struct {
	Timestamp         string   `json:"timestamp"`
	UID               string   `json:"uid"`
	UserName          string   `json:"user_name"`
	HouseID           string   `json:"house_id"`
	Esp32ID           string   `json:"esp32_id"`
	TokenType         string   `json:"token_type"`
	EventType         string   `json:"event_type"`
	TokenBalanceAfter *FlexInt `json:"token_balance_after"`
	MasterkeyHolder   string   `json:"masterkey_holder"`
	IsMasterkeyEvent  FlexBool `json:"is_masterkey_event"`
}

type AdminLogEntry struct {
	Timestamp  string `json:"timestamp"`
	AdminEmail string `json:"admin_email"`
	Action     string `json:"action"`
	Target     string `json:"target"`
	Details    string `json:"details"`
}

type DashboardStats struct {
	DevicesActive  FlexInt `json:"devicesActive"`
	DevicesOffline FlexInt `json:"devicesOffline"`
	AccessToday    FlexInt `json:"accessToday"`
	TokensConsumed FlexInt `json:"tokensConsumed"`
}

type ChartPoint struct {
	Date      string  `json:"date"`
	TokenType string  `json:"token_type"`
	Count     FlexInt `json:"count"`
}

type UserHouse struct {
	UID     string `json:"uid"`
	HouseID string `json:"house_id"`
}

type AdminHouse struct {
	AdminEmail string `json:"admin_email"`
	HouseID    string `json:"house_id"`
}

type usersResponse struct {
	Envelope
	Users []User `json:"users"`
}

type devicesResponse struct {
	Envelope
	Devices []Device `json:"devices"`
}

type housesResponse struct {
	Envelope
	Houses []House `json:"houses"`
}

type tokenTypesResponse struct {
	Envelope
	TokenTypes []TokenType `json:"token_types"`
}

type masterkeysResponse struct {
	Envelope
	Masterkeys []Masterkey `json:"masterkeys"`
}

type logsResponse struct {
	Envelope
	Logs []LogEntry `json:"logs"`
}

type adminLogResponse struct {
	Envelope
	Entries []AdminLogEntry `json:"logs"`
}

type adminsResponse struct {
	Envelope
	Admins []AdminRecord `json:"admins"`
}

type statsResponse struct {
	Envelope
	Stats DashboardStats `json:"stats"`
}

type chartResponse struct {
	Envelope
	ChartData []ChartPoint `json:"chart_data"`
}

type userHousesResponse struct {
	Envelope
	Assignments []UserHouse `json:"assignments"`
}

type adminHousesResponse struct {
	Envelope
	Assignments []AdminHouse `json:"assignments"`
}

type adminHouseIDsResponse struct {
	Envelope
	Houses []string `json:"houses"`
}

// Envelope accessor used by the generic decode path.
type enveloped interface {
	envelope() Envelope
}

func (e Envelope) envelope() Envelope {
	return e
}
