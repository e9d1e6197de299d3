package goroutine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSafeGoWithContext_RecoversPanic(t *testing.T) {
	done := SafeGoWithContext(context.Background(), "test", func(context.Context) {
		panic("boom")
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("горутина не завершилась")
	}
}

func TestSafeGo_RunsFunction(t *testing.T) {
	ran := make(chan struct{})
	SafeGo("test", func() { close(ran) })

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("функция не запущена")
	}
	assert.True(t, true)
}
