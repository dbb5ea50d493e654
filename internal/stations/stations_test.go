package stations

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRegistry() *Registry {
	return NewRegistry(map[string]Station{
		"WESH": {ServerAddress: "http://wesh-cont1.example.org:10456/proxy/", Database: "ENPS", Basepath: "P_SYSTEM\\"},
		"WMUR": {ServerAddress: "http://wmur-cont1.example.org:10456/proxy/", Database: "ENPS", Basepath: "P_SYSTEM\\"},
		"KCRA": {ServerAddress: "http://kcra-cont1.example.org:10456/proxy/", Database: "ENPS", Basepath: "P_SYSTEM\\"},
	})
}

func TestRegistry_Get(t *testing.T) {
	r := testRegistry()

	station, err := r.Get("WESH")
	require.NoError(t, err)
	assert.Equal(t, "http://wesh-cont1.example.org:10456/proxy/", station.ServerAddress)

	_, err = r.Get("KSBW")
	assert.Error(t, err)
}

func TestRegistry_ServerAddress(t *testing.T) {
	r := testRegistry()

	addr, err := r.ServerAddress("WMUR")
	require.NoError(t, err)
	assert.Equal(t, "http://wmur-cont1.example.org:10456/proxy/", addr)

	_, err = r.ServerAddress("KSBW")
	assert.Error(t, err)
}

func TestRegistry_Names(t *testing.T) {
	r := testRegistry()
	assert.Equal(t, []string{"KCRA", "WESH", "WMUR"}, r.Names())
}

func TestRegistry_NamesExcluding(t *testing.T) {
	r := testRegistry()
	assert.Equal(t, []string{"KCRA", "WMUR"}, r.NamesExcluding("WESH"))

	// Excluding an unknown station returns everything.
	assert.Equal(t, []string{"KCRA", "WESH", "WMUR"}, r.NamesExcluding("KSBW"))
}

func TestRegistry_Empty(t *testing.T) {
	r := NewRegistry(nil)
	assert.Equal(t, 0, r.Len())
	assert.Empty(t, r.Names())
}
