package schema

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/gray-logic-driver/internal/authority"
	"github.com/nerrad567/gray-logic-driver/internal/authority/authoritytest"
)

func seeded() *authoritytest.Authority {
	a := authoritytest.New()
	a.DriverAttributes.Seed(
		authority.Attribute{ID: 1, Name: "host", Type: "string", DriverID: 7},
		authority.Attribute{ID: 2, Name: "port", Type: "int", DriverID: 7},
		authority.Attribute{ID: 3, Name: "host", Type: "string", DriverID: 8},
	)
	a.PointAttributes.Seed(
		authority.Attribute{ID: 10, Name: "offset", Type: "int", DriverID: 7},
	)
	return a
}

func TestLoadMaps(t *testing.T) {
	ctx := context.Background()
	client := seeded().Client()

	dm, err := LoadDriverAttributeMap(ctx, client, 7)
	require.NoError(t, err)
	assert.Len(t, dm, 2)
	assert.Equal(t, "port", dm[2].Name)

	pm, err := LoadPointAttributeMap(ctx, client, 7)
	require.NoError(t, err)
	assert.Len(t, pm, 1)
}

func TestStore_Refresh(t *testing.T) {
	ctx := context.Background()
	a := seeded()
	s := NewStore()

	_, ok := s.DriverAttribute(1)
	assert.False(t, ok)

	require.NoError(t, s.Refresh(ctx, a.Client(), 7))

	attr, ok := s.DriverAttribute(2)
	require.True(t, ok)
	assert.Equal(t, "port", attr.Name)

	_, ok = s.DriverAttribute(3)
	assert.False(t, ok, "definitions of other drivers are not loaded")

	attr, ok = s.PointAttribute(10)
	require.True(t, ok)
	assert.Equal(t, "offset", attr.Name)

	d, p := s.Len()
	assert.Equal(t, 2, d)
	assert.Equal(t, 1, p)
}

func TestStore_RefreshFailureKeepsPrevious(t *testing.T) {
	ctx := context.Background()
	a := seeded()
	s := NewStore()
	require.NoError(t, s.Refresh(ctx, a.Client(), 7))

	a.PointAttributes.FailOn(authoritytest.OpList, errors.New("connection refused"))
	err := s.Refresh(ctx, a.Client(), 7)
	assert.ErrorIs(t, err, ErrLoadFailed)

	_, ok := s.DriverAttribute(1)
	assert.True(t, ok, "failed refresh must not publish a partial schema")
}

func TestStore_ConcurrentReadDuringReplace(t *testing.T) {
	s := NewStore()
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := range 1000 {
			s.Replace(Map{int64(i): {ID: int64(i)}}, Map{int64(i): {ID: int64(i)}})
		}
	}()
	go func() {
		defer wg.Done()
		for i := range 1000 {
			s.DriverAttribute(int64(i))
			s.PointAttribute(int64(i))
		}
	}()
	wg.Wait()
}
