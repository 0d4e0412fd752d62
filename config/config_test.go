package config

import (
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoZeroFields(t *testing.T) {
	cfg := Default()

	for _, field := range visit(newVar(*cfg), "Config", false) {
		assert.Fail(t, "zero-value field", field)
	}
}

func TestValidate(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoad(t *testing.T) {
	t.Run("overrides", func(t *testing.T) {
		doc := `
net:
  headTimeout: 250ms
  closeTimeout: 3s
headers:
  collect: [Authorization, X-Session]
static:
  index: reprap.htm
`
		cfg, err := Load(strings.NewReader(doc))
		require.NoError(t, err)
		require.Equal(t, 250*time.Millisecond, cfg.NET.HeadTimeout)
		require.Equal(t, 3*time.Second, cfg.NET.CloseTimeout)
		require.Equal(t, []string{"Authorization", "X-Session"}, cfg.Headers.Collect)
		require.Equal(t, "reprap.htm", cfg.Static.Index)
		// untouched fields keep defaults
		require.Equal(t, 2048, cfg.Body.UploadBufferSize)
		require.Equal(t, 1460, cfg.NET.DownloadUnitSize)
	})

	t.Run("empty document", func(t *testing.T) {
		cfg, err := Load(strings.NewReader(""))
		require.NoError(t, err)
		require.Equal(t, Default(), cfg)
	})

	t.Run("invalid values", func(t *testing.T) {
		for _, doc := range []string{
			"body:\n  uploadBufferSize: 0\n",
			"body:\n  uploadBufferSize: -5\n",
			"body:\n  maxSize: 0\n",
			"net:\n  downloadUnitSize: 0\n",
			"net:\n  closeTimeout: 0s\n",
			"net:\n  headTimeout: -1s\n",
			"net:\n  writeBufferSize:\n    default: 0\n",
			"net:\n  writeBufferSize:\n    default: 8192\n",
			"headers:\n  space:\n    maximal: 16\n",
			"body:\n  form:\n    entriesPrealloc: -1\n",
		} {
			_, err := Load(strings.NewReader(doc))
			require.ErrorIs(t, err, ErrInvalid, doc)
		}
	})

	t.Run("malformed", func(t *testing.T) {
		_, err := Load(strings.NewReader("net: [1, 2"))
		require.Error(t, err)
	})
}

type variable struct {
	Type  reflect.Type
	Value reflect.Value
}

func newVar(a any) variable {
	return variable{reflect.TypeOf(a), reflect.ValueOf(a)}
}

func visit(a variable, name string, nullable bool) (fields []string) {
	if a.Type.Kind() == reflect.Struct {
		for field := range a.Value.NumField() {
			v1 := variable{a.Type.Field(field).Type, a.Value.Field(field)}
			fieldname := a.Type.Field(field).Name
			isNullable := a.Type.Field(field).Tag.Get("test") == "nullable"
			fields = append(fields, visit(v1, name+"."+fieldname, isNullable)...)
		}

		return fields
	}

	if a.Value.IsZero() && !nullable {
		return []string{name}
	}

	return nil
}
