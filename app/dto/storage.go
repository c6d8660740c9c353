package dto

// StorageKeys are the persisted session identity fields for one profile.
type StorageKeys struct {
	Email string
	Role  string
	Name  string
}

func (k StorageKeys) All() []string {
	return []string{k.Email, k.Role, k.Name}
}

var WebStorageKeys = StorageKeys{
	Email: "iot_user_email",
	Role:  "iot_user_role",
	Name:  "iot_user_name",
}

var MobileStorageKeys = StorageKeys{
	Email: "mob_admin_email",
	Role:  "mob_admin_role",
	Name:  "mob_admin_name",
}

const BackendURLKey = "backendUrl"

const (
	ProfileWeb    = "web"
	ProfileMobile = "mobile"
)

func StorageKeysFor(profile string) StorageKeys {
	if profile == ProfileMobile {
		return MobileStorageKeys
	}

	return WebStorageKeys
}
