package dto

// Action is a capability key checked before a sensitive UI action or navigation.
type Action string

const (
	ActionUsersView         Action = "users.view"
	ActionUsersCreate       Action = "users.create"
	ActionUsersEdit         Action = "users.edit"
	ActionUsersToggleStatus Action = "users.toggleStatus"
	ActionUsersAdjustTokens Action = "users.adjustTokens"

	ActionDevicesView         Action = "devices.view"
	ActionDevicesCreate       Action = "devices.create"
	ActionDevicesEdit         Action = "devices.edit"
	ActionDevicesToggleStatus Action = "devices.toggleStatus"
	ActionDevicesViewHistory  Action = "devices.viewHistory"

	ActionLogsView   Action = "logs.view"
	ActionLogsExport Action = "logs.export"

	ActionRolesView         Action = "roles.view"
	ActionRolesCreate       Action = "roles.create"
	ActionRolesEdit         Action = "roles.edit"
	ActionRolesViewAdminLog Action = "roles.viewAdminLog"

	ActionTokensView   Action = "tokens.view"
	ActionTokensCreate Action = "tokens.create"
	ActionTokensEdit   Action = "tokens.edit"
	ActionTokensDelete Action = "tokens.delete"

	ActionHousesView   Action = "houses.view"
	ActionHousesCreate Action = "houses.create"
	ActionHousesEdit   Action = "houses.edit"
	ActionHousesDelete Action = "houses.delete"

	ActionMasterkeysView   Action = "masterkeys.view"
	ActionMasterkeysCreate Action = "masterkeys.create"
	ActionMasterkeysEdit   Action = "masterkeys.edit"
	ActionMasterkeysDelete Action = "masterkeys.delete"

	ActionDashboardView Action = "dashboard.view"
)

// Pages reachable from the navigation, with the capability each one requires.
var PageActions = map[string]Action{
	"dashboard":  ActionDashboardView,
	"users":      ActionUsersView,
	"devices":    ActionDevicesView,
	"logs":       ActionLogsView,
	"tokens":     ActionTokensView,
	"roles":      ActionRolesView,
	"houses":     ActionHousesView,
	"masterkeys": ActionMasterkeysView,
}

// AllActions lists every capability key.
var AllActions = []Action{
	ActionUsersView, ActionUsersCreate, ActionUsersEdit, ActionUsersToggleStatus, ActionUsersAdjustTokens,
	ActionDevicesView, ActionDevicesCreate, ActionDevicesEdit, ActionDevicesToggleStatus, ActionDevicesViewHistory,
	ActionLogsView, ActionLogsExport,
	ActionRolesView, ActionRolesCreate, ActionRolesEdit, ActionRolesViewAdminLog,
	ActionTokensView, ActionTokensCreate, ActionTokensEdit, ActionTokensDelete,
	ActionHousesView, ActionHousesCreate, ActionHousesEdit, ActionHousesDelete,
	ActionMasterkeysView, ActionMasterkeysCreate, ActionMasterkeysEdit, ActionMasterkeysDelete,
	ActionDashboardView,
}
