//go:build !wasm

package gorm

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

func TestIsDuplicate(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"translated", gorm.ErrDuplicatedKey, true},
		{"wrapped translated", fmt.Errorf("insert: %w", gorm.ErrDuplicatedKey), true},
		{"raw mysql", &mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'a' for key 'idx_accounts_username'"}, true},
		{"other mysql", &mysql.MySQLError{Number: 1146, Message: "Table doesn't exist"}, false},
		{"unrelated", errors.New("connection refused"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isDuplicate(tt.err))
		})
	}
}

func TestModelRoundTripKeepsSecrets(t *testing.T) {
	m := &AccountModel{ID: "01J", Username: "alice", PasswordHash: "hash", ResetTokenHash: "reset"}
	a := m.ToAccount()
	assert.Equal(t, "hash", a.PasswordHash)
	assert.Equal(t, "reset", a.ResetTokenHash)
	assert.Equal(t, m, AccountToModel(a))
}

func TestUsernameColumnIsCaseSensitive(t *testing.T) {
	sch, err := schema.Parse(&AccountModel{}, &sync.Map{}, schema.NamingStrategy{})
	require.NoError(t, err)

	field := sch.LookUpField("Username")
	require.NotNil(t, field)
	assert.Contains(t, string(field.DataType), "utf8mb4_bin")
	assert.Equal(t, "idx_accounts_username", field.TagSettings["UNIQUEINDEX"])
}
