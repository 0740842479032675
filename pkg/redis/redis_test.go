package redis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tiendaropa/catalog-backend/config"
)

func TestInit_UnreachableServer(t *testing.T) {
	err := Init(&config.RedisConfig{
		Host: "127.0.0.1",
		Port: "1", // nothing listens here
		DB:   0,
	})

	assert.Error(t, err)
	assert.Nil(t, GetClient(), "a failed Init must not leave a client behind")
}

func TestClose_WithoutClient(t *testing.T) {
	client = nil
	assert.NoError(t, Close())
}
