package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/wyfcoding/geonear/xerrors"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func render(err error) (*httptest.ResponseRecorder, map[string]any) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	Error(c, err)
	var body map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	return w, body
}

func TestError_Mapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   float64
	}{
		{"invalid input", xerrors.InvalidInput("latitude 91 out of range"), http.StatusBadRequest, 400101},
		{"stale index", fmt.Errorf("query: %w", xerrors.StaleIndex("released")), http.StatusConflict, 409101},
		{"field not found", xerrors.Derive(xerrors.ErrFieldNotFound, "t2m"), http.StatusNotFound, 404101},
		{"plain error", errors.New("boom"), http.StatusInternalServerError, 500},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w, body := render(tc.err)
			if w.Code != tc.status {
				t.Errorf("status = %d, want %d", w.Code, tc.status)
			}
			if body["code"] != tc.code {
				t.Errorf("code = %v, want %v", body["code"], tc.code)
			}
		})
	}
}

func TestError_Detail(t *testing.T) {
	_, body := render(xerrors.InvalidInput("latitude %v at index %d outside [-90, 90]", 91.0, 3))
	if body["msg"] != "invalid input" || body["detail"] != "latitude 91 at index 3 outside [-90, 90]" {
		t.Errorf("body = %v", body)
	}
}

func TestSuccess(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	Success(c, gin.H{"fields": 2})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var body struct {
		Code int            `json:"code"`
		Data map[string]int `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Code != 0 || body.Data["fields"] != 2 {
		t.Errorf("body = %+v", body)
	}
}
