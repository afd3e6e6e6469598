package actorutil

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackgroundTaskSuccess(t *testing.T) {

	assert := assert.New(t)

	var got int
	NewBackgroundTask(nil, func() (*int, error) {
		v := 42
		return &v, nil
	}).OnSuccess(func(v int) {
		got = v
	}).Run()

	assert.Equal(42, got)
}

func TestBackgroundTaskRecover(t *testing.T) {

	assert := assert.New(t)

	var got string
	NewBackgroundTask(nil, func() (*string, error) {
		return nil, errors.New("device gone")
	}).Recover(func(err error) string {
		return "recovered: " + err.Error()
	}).OnSuccess(func(v string) {
		got = v
	}).Run()

	assert.Equal("recovered: device gone", got)
}

func TestBackgroundTaskTimeout(t *testing.T) {

	assert := assert.New(t)

	var recovered error
	NewBackgroundTask(nil, func() (*int, error) {
		time.Sleep(500 * time.Millisecond)
		v := 1
		return &v, nil
	}).WithTimeout(20 * time.Millisecond).Recover(func(err error) int {
		recovered = err
		return -1
	}).OnSuccess(func(v int) {
		assert.Equal(-1, v)
	}).Run()

	assert.Error(recovered)
}

func TestMapBackgroundTask(t *testing.T) {

	assert := assert.New(t)

	var got string
	MapBackgroundTask(NewBackgroundTask(nil, func() (*int, error) {
		v := 7
		return &v, nil
	}), func(v *int) *string {
		s := "meter" + string(rune('0'+*v))
		return &s
	}).OnSuccess(func(v string) {
		got = v
	}).Run()

	assert.Equal("meter7", got)
}
