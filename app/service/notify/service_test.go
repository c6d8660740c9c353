package notify

import (
	"errors"
	"sync"
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishAndRecent(t *testing.T) {
	svc := NewService()

	var mu sync.Mutex
	var received []Notice
	done := make(chan struct{}, 2)

	sub := svc.Subscribe(func(notice Notice) {
		mu.Lock()
		received = append(received, notice)
		mu.Unlock()
		done <- struct{}{}
	})
	defer svc.Unsubscribe(sub)

	svc.Success("Usuario creado correctamente")
	svc.Warning("No hay datos")
	<-done
	<-done

	recent := svc.Recent()
	require.Len(t, recent, 2)
	assert.Equal(t, KindSuccess, recent[0].Kind)
	assert.Equal(t, "No hay datos", recent[1].Message)

	mu.Lock()
	assert.Len(t, received, 2)
	mu.Unlock()
}

func TestRecentIsBounded(t *testing.T) {
	svc := NewService()
	for i := 0; i < maxRecent+10; i++ {
		svc.Info("tick")
	}

	assert.Len(t, svc.Recent(), maxRecent)
}

func TestFail(t *testing.T) {
	svc := NewService()

	require.NoError(t, svc.Fail(nil, "ignored"))
	assert.Empty(t, svc.Recent())

	err := svc.Fail(oops.Public("Casa no encontrada").Errorf("deleteHouse rejected"), "Error")
	require.Error(t, err)

	plain := errors.New("boom")
	assert.Equal(t, plain, svc.Fail(plain, "Error al eliminar"))

	recent := svc.Recent()
	require.Len(t, recent, 2)
	assert.Equal(t, KindError, recent[0].Kind)
	assert.Equal(t, "Casa no encontrada", recent[0].Message)
	assert.Equal(t, "Error al eliminar", recent[1].Message)
}
