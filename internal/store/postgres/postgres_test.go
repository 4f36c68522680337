package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, isUniqueViolation(&pq.Error{Code: "23505"}))
	assert.True(t, isUniqueViolation(fmt.Errorf("insert user: %w", &pq.Error{Code: "23505"})))
	assert.False(t, isUniqueViolation(&pq.Error{Code: "23503"}))
	assert.False(t, isUniqueViolation(errors.New("boom")))
}

func TestValidID(t *testing.T) {
	assert.True(t, validID("6f1c6e1d-6f0c-4b7e-9a3d-0d8e2f1b2c3a"))
	assert.False(t, validID("65f1c6e1d6f0c4b79a3d0d8e"))
	assert.False(t, validID(""))
}
