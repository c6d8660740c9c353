package util

import "github.com/samber/oops"

// Error kinds attached to oops errors under the "kind" context key.
const (
	KindConfig       = "config"
	KindNetwork      = "network"
	KindForbidden    = "forbidden"
	KindRejected     = "rejected"
	KindValidation   = "validation"
	KindUnauthorized = "unauthorized"
	KindInactive     = "inactive"
)

// ErrorKind returns the innermost kind attached to err, or "" when none is set.
func ErrorKind(err error) string {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}

	kind, _ := oopsErr.Context()["kind"].(string)

	return kind
}

func IsKind(err error, kind string) bool {
	return err != nil && ErrorKind(err) == kind
}

// NotFound is returned when an operation names a record that is not loaded.
func NotFound(what, id string) error {
	return oops.
		With("kind", KindValidation).
		With("id", id).
		Public("No encontrado: " + id).
		Errorf("%s %s not found", what, id)
}

// Unauthenticated is returned when a command needs a session and none is stored.
func Unauthenticated() error {
	return oops.
		With("kind", KindUnauthorized).
		Public("Inicie sesión con ctrlbx login").
		Errorf("no session")
}

// InvalidArgument reports a malformed command line value.
func InvalidArgument(name, value string) error {
	return oops.
		With("kind", KindValidation).
		With(name, value).
		Public("Valor inválido para " + name + ": " + value).
		Errorf("invalid %s %q", name, value)
}
