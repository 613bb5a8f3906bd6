package handlers

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Manjussha/inkd/internal/db"
	"github.com/Manjussha/inkd/internal/usage"
)

func putSetting(h *Handler, key, body string) *httptest.ResponseRecorder {
	r := httptest.NewRequest(http.MethodPut, "/api/v1/settings/"+key, strings.NewReader(body))
	r.SetPathValue("key", key)
	w := httptest.NewRecorder()
	h.UpdateSetting(w, r)
	return w
}

func TestUpdateSetting_Threshold(t *testing.T) {
	database, err := db.New(filepath.Join(t.TempDir(), "inkd_settings_test.db"))
	require.NoError(t, err)
	require.NoError(t, database.Migrate())
	gov := usage.NewGovernor(100, nil)
	h := New(Deps{DB: database, Governor: gov})

	w := putSetting(h, SettingLowCreditThreshold, `{"value":"250"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(250), gov.Threshold())
	assert.Equal(t, "250", database.GetSetting(SettingLowCreditThreshold, ""))

	w = putSetting(h, SettingLowCreditThreshold, `{"value":"-1"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, int64(250), gov.Threshold())

	// A failed write leaves the running threshold untouched.
	require.NoError(t, database.Close())
	w = putSetting(h, SettingLowCreditThreshold, `{"value":"900"}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, int64(250), gov.Threshold())
}
