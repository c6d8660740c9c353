package backend

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/elliotchance/pie/v2"
)

type UserInput struct {
	UID      string `json:"uid" validate:"required"`
	UserName string `json:"user_name" validate:"required"`
	Status   string `json:"status,omitempty" validate:"omitempty,oneof=ACTIVO INACTIVO"`
	UserType string `json:"user_type,omitempty" validate:"omitempty,oneof=GLOBAL HOUSE"`
}

type UserPatch struct {
	UserName string `json:"user_name,omitempty"`
	Status   string `json:"status,omitempty" validate:"omitempty,oneof=ACTIVO INACTIVO"`
	UserType string `json:"user_type,omitempty" validate:"omitempty,oneof=GLOBAL HOUSE"`
}

type DeviceInput struct {
	Esp32ID         string `json:"esp32_id" validate:"required"`
	Location        string `json:"location"`
	TokenType       string `json:"token_type" validate:"required"`
	HouseID         string `json:"house_id"`
	Active          bool   `json:"active"`
	TimeLimitMin    int    `json:"time_limit_min" validate:"gte=0"`
	ReconnectSec    int    `json:"reconnect_sec" validate:"gte=0"`
	WifiSSID        string `json:"wifi_ssid"`
	WifiPassword    string `json:"wifi_password"`
	TimeWindowStart string `json:"time_window_start" validate:"omitempty,clock"`
	TimeWindowEnd   string `json:"time_window_end" validate:"omitempty,clock"`
}

type HouseInput struct {
	HouseID       string `json:"house_id" validate:"required"`
	HouseImg      string `json:"house_img"`
	HouseStreet   string `json:"house_street"`
	HouseNumber   string `json:"house_number"`
	HouseExtra    string `json:"house_extra"`
	HousePostcode string `json:"house_postcode"`
	HouseLat      string `json:"house_lat" validate:"omitempty,latitude"`
	HouseLong     string `json:"house_long" validate:"omitempty,longitude"`
}

type MasterkeyInput struct {
	MasterkeyID     string `json:"masterkey_id" validate:"required"`
	MasterkeyLevel  string `json:"masterkey_level" validate:"required,oneof=GLOBAL HOUSE DEVICE"`
	LevelTarget     string `json:"level_target" validate:"required_unless=MasterkeyLevel GLOBAL"`
	State           string `json:"state" validate:"required,oneof=ACTIVA INACTIVA"`
	MasterkeyHolder string `json:"masterkey_holder,omitempty"`
}

// MasterkeyPatch changes a master key. A non-nil empty LevelTarget clears the
// target, which is needed when the level becomes GLOBAL.
type MasterkeyPatch struct {
	MasterkeyLevel  string  `json:"masterkey_level,omitempty" validate:"omitempty,oneof=GLOBAL HOUSE DEVICE"`
	LevelTarget     *string `json:"level_target,omitempty"`
	State           string  `json:"state,omitempty" validate:"omitempty,oneof=ACTIVA INACTIVA"`
	MasterkeyHolder string  `json:"masterkey_holder,omitempty"`
}

type TokenTypeInput struct {
	TokenType      string `json:"token_type" validate:"required"`
	TokenName      string `json:"token_name" validate:"required"`
	Description    string `json:"description"`
	Status         string `json:"status,omitempty" validate:"omitempty,oneof=ACTIVO INACTIVO"`
	TokenTypeColor string `json:"token_type_color,omitempty" validate:"omitempty,hexcolor"`
}

type TokenTypePatch struct {
	TokenName      string `json:"token_name,omitempty"`
	Description    string `json:"description,omitempty"`
	Status         string `json:"status,omitempty" validate:"omitempty,oneof=ACTIVO INACTIVO"`
	TokenTypeColor string `json:"token_type_color,omitempty" validate:"omitempty,hexcolor"`
}

type AdminInput struct {
	AdminEmail string `json:"admin_email" validate:"required,email"`
	Role       string `json:"role" validate:"required,oneof=MASTER ADMIN VIEWER"`
	Status     string `json:"status" validate:"required,oneof=ACTIVO INACTIVO"`
}

type AdminPatch struct {
	Role   string `json:"role,omitempty" validate:"omitempty,oneof=MASTER ADMIN VIEWER"`
	Status string `json:"status,omitempty" validate:"omitempty,oneof=ACTIVO INACTIVO"`
}

// ChartQuery selects the dashboard chart series. Empty slices mean no
// restriction and are omitted from the request.
type ChartQuery struct {
	StartDate  string
	EndDate    string
	HouseIDs   []string
	TokenTypes []string
	EventTypes []string
}

func (q ChartQuery) params() map[string]string {
	params := map[string]string{}
	setIfNotEmpty(params, "start_date", q.StartDate)
	setIfNotEmpty(params, "end_date", q.EndDate)
	setIfNotEmpty(params, "house_ids", strings.Join(q.HouseIDs, ","))
	setIfNotEmpty(params, "token_types", strings.Join(q.TokenTypes, ","))
	setIfNotEmpty(params, "event_types", strings.Join(q.EventTypes, ","))

	return params
}

// LogQuery holds the server side log filters.
type LogQuery struct {
	StartDate string
	EndDate   string
	Limit     int
}

func (q LogQuery) params() map[string]string {
	params := map[string]string{}
	setIfNotEmpty(params, "start_date", q.StartDate)
	setIfNotEmpty(params, "end_date", q.EndDate)
	if q.Limit > 0 {
		params["limit"] = strconv.Itoa(q.Limit)
	}

	return params
}

func setIfNotEmpty(params map[string]string, key, value string) {
	if value != "" {
		params[key] = value
	}
}

func (c *Client) ValidateAdmin(ctx context.Context, email string) (*ValidateAdminResponse, error) {
	var resp ValidateAdminResponse
	if err := c.Get(ctx, "validateAdmin", map[string]string{"email": email}, &resp); err != nil {
		return nil, err
	}

	return &resp, nil
}

func (c *Client) GetUsers(ctx context.Context) ([]User, error) {
	var resp usersResponse
	if err := c.Get(ctx, "getUsers", nil, &resp); err != nil {
		return nil, err
	}

	return resp.Users, nil
}

// GetDevices lists devices. A non-empty adminEmail scopes the list to the
// houses that admin manages.
func (c *Client) GetDevices(ctx context.Context, adminEmail string) ([]Device, error) {
	params := map[string]string{}
	setIfNotEmpty(params, "admin_email", adminEmail)

	var resp devicesResponse
	if err := c.Get(ctx, "getDevices", params, &resp); err != nil {
		return nil, err
	}

	return pie.Map(resp.Devices, normalizeDevice), nil
}

func normalizeDevice(d Device) Device {
	d.TimeWindowStart = d.TimeWindowStart.Or(DefaultWindowStart)
	d.TimeWindowEnd = d.TimeWindowEnd.Or(DefaultWindowEnd)

	return d
}

func (c *Client) GetHouses(ctx context.Context) ([]House, error) {
	var resp housesResponse
	if err := c.Get(ctx, "getHouses", nil, &resp); err != nil {
		return nil, err
	}

	return resp.Houses, nil
}

func (c *Client) GetTokenTypes(ctx context.Context) ([]TokenType, error) {
	var resp tokenTypesResponse
	if err := c.Get(ctx, "getTokenTypes", nil, &resp); err != nil {
		return nil, err
	}

	return resp.TokenTypes, nil
}

func (c *Client) GetLogs(ctx context.Context, query LogQuery) ([]LogEntry, error) {
	var resp logsResponse
	if err := c.Get(ctx, "getLogs", query.params(), &resp); err != nil {
		return nil, err
	}

	return resp.Logs, nil
}

func (c *Client) GetAdmins(ctx context.Context) ([]AdminRecord, error) {
	var resp adminsResponse
	if err := c.Get(ctx, "getAdmins", nil, &resp); err != nil {
		return nil, err
	}

	return resp.Admins, nil
}

func (c *Client) GetDashboardStats(ctx context.Context) (DashboardStats, error) {
	var resp statsResponse
	if err := c.Get(ctx, "getDashboardStats", nil, &resp); err != nil {
		return DashboardStats{}, err
	}

	return resp.Stats, nil
}

func (c *Client) GetChartData(ctx context.Context, query ChartQuery) ([]ChartPoint, error) {
	var resp chartResponse
	if err := c.Get(ctx, "getChartData", query.params(), &resp); err != nil {
		return nil, err
	}

	return resp.ChartData, nil
}

func (c *Client) GetMasterkeys(ctx context.Context) ([]Masterkey, error) {
	var resp masterkeysResponse
	if err := c.Get(ctx, "getMasterkeys", nil, &resp); err != nil {
		return nil, err
	}

	return resp.Masterkeys, nil
}

func (c *Client) GetMasterkeysForDevice(ctx context.Context, esp32ID string) ([]Masterkey, error) {
	var resp masterkeysResponse
	if err := c.Get(ctx, "getMasterkeysForDevice", map[string]string{"esp32_id": esp32ID}, &resp); err != nil {
		return nil, err
	}

	return resp.Masterkeys, nil
}

func (c *Client) GetAllAdminHouses(ctx context.Context) ([]AdminHouse, error) {
	var resp adminHousesResponse
	if err := c.Get(ctx, "getAllAdminHouses", nil, &resp); err != nil {
		return nil, err
	}

	return resp.Assignments, nil
}

func (c *Client) GetAllUserHouses(ctx context.Context) ([]UserHouse, error) {
	var resp userHousesResponse
	if err := c.Get(ctx, "getAllUserHouses", nil, &resp); err != nil {
		return nil, err
	}

	return resp.Assignments, nil
}

// GetAdminHouses returns the ids of the houses assigned to an admin.
func (c *Client) GetAdminHouses(ctx context.Context, email string) ([]string, error) {
	var resp adminHouseIDsResponse
	if err := c.Get(ctx, "getAdminHouses", map[string]string{"email": email}, &resp); err != nil {
		return nil, err
	}

	return resp.Houses, nil
}

func (c *Client) GetAdminLog(ctx context.Context, limit int) ([]AdminLogEntry, error) {
	params := map[string]string{}
	if limit > 0 {
		params["limit"] = strconv.Itoa(limit)
	}

	var resp adminLogResponse
	if err := c.Get(ctx, "getAdminLog", params, &resp); err != nil {
		return nil, err
	}

	return resp.Entries, nil
}

func (c *Client) CreateUser(ctx context.Context, input UserInput) error {
	return c.Post(ctx, "createUser", input, nil)
}

func (c *Client) UpdateUser(ctx context.Context, uid string, patch UserPatch) error {
	return c.Post(ctx, "updateUser", withKey("uid", uid, patch), nil)
}

func (c *Client) UpdateTokenBalance(ctx context.Context, uid, tokenType string, delta int) error {
	return c.Post(ctx, "updateTokenBalance", map[string]any{
		"uid":        uid,
		"token_type": tokenType,
		"delta":      delta,
	}, nil)
}

func (c *Client) AssignUserHouses(ctx context.Context, uid string, houseIDs []string) error {
	if houseIDs == nil {
		houseIDs = []string{}
	}

	return c.Post(ctx, "assignUserHouses", map[string]any{
		"uid":       uid,
		"house_ids": houseIDs,
	}, nil)
}

func (c *Client) CreateDevice(ctx context.Context, input DeviceInput) error {
	return c.Post(ctx, "createDevice", input, nil)
}

func (c *Client) UpdateDevice(ctx context.Context, esp32ID string, fields map[string]any) error {
	return c.Post(ctx, "updateDevice", withKey("esp32_id", esp32ID, fields), nil)
}

func (c *Client) CreateHouse(ctx context.Context, input HouseInput) error {
	return c.Post(ctx, "createHouse", input, nil)
}

func (c *Client) UpdateHouse(ctx context.Context, input HouseInput) error {
	return c.Post(ctx, "updateHouse", input, nil)
}

func (c *Client) DeleteHouse(ctx context.Context, houseID string) error {
	return c.Post(ctx, "deleteHouse", map[string]any{"house_id": houseID}, nil)
}

func (c *Client) AssignHouseAdmin(ctx context.Context, houseID, adminEmail string) error {
	return c.Post(ctx, "assignHouseAdmin", map[string]any{
		"house_id":    houseID,
		"admin_email": adminEmail,
	}, nil)
}

func (c *Client) CreateMasterkey(ctx context.Context, input MasterkeyInput) error {
	return c.Post(ctx, "createMasterkey", input, nil)
}

func (c *Client) UpdateMasterkey(ctx context.Context, masterkeyID string, patch MasterkeyPatch) error {
	return c.Post(ctx, "updateMasterkey", withKey("masterkey_id", masterkeyID, patch), nil)
}

func (c *Client) DeleteMasterkey(ctx context.Context, masterkeyID string) error {
	return c.Post(ctx, "deleteMasterkey", map[string]any{"masterkey_id": masterkeyID}, nil)
}

func (c *Client) CreateTokenType(ctx context.Context, input TokenTypeInput) error {
	return c.Post(ctx, "createTokenType", input, nil)
}

func (c *Client) UpdateTokenType(ctx context.Context, tokenType string, patch TokenTypePatch) error {
	return c.Post(ctx, "updateTokenType", withKey("token_type", tokenType, patch), nil)
}

// DeleteTokenType removes a token type. Without force the backend refuses with
// SentinelUsersHaveBalance while users still hold a balance of it.
func (c *Client) DeleteTokenType(ctx context.Context, tokenType string, force bool) error {
	return c.Post(ctx, "deleteTokenType", map[string]any{
		"token_type": tokenType,
		"force":      force,
	}, nil)
}

func (c *Client) ResetBalanceByTokenType(ctx context.Context, tokenType string) error {
	return c.Post(ctx, "resetBalanceByTokenType", map[string]any{"token_type": tokenType}, nil)
}

func (c *Client) CreateAdmin(ctx context.Context, input AdminInput) error {
	return c.Post(ctx, "createAdmin", input, nil)
}

func (c *Client) UpdateAdmin(ctx context.Context, email string, patch AdminPatch) error {
	return c.Post(ctx, "updateAdmin", withKey("email", email, patch), nil)
}

// withKey merges an identifying field into a patch object.
func withKey(key, value string, patch any) map[string]any {
	fields := map[string]any{}

	if raw, err := json.Marshal(patch); err == nil {
		_ = json.Unmarshal(raw, &fields)
	}

	fields[key] = value

	return fields
}
