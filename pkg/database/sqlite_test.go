package database

import (
	"errors"
	"fmt"
	"testing"

	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
)

func TestIsBusy(t *testing.T) {
	busy := sqlite3.Error{Code: sqlite3.ErrBusy}
	locked := sqlite3.Error{Code: sqlite3.ErrLocked}
	constraint := sqlite3.Error{Code: sqlite3.ErrConstraint}

	assert.True(t, IsBusy(busy))
	assert.True(t, IsBusy(locked))
	assert.True(t, IsBusy(fmt.Errorf("failed to update claim: %w", busy)), "wrapped driver errors must still classify")
	assert.False(t, IsBusy(constraint))
	assert.False(t, IsBusy(errors.New("plain error")))
	assert.False(t, IsBusy(nil))
}
