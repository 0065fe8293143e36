package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erp/marketsync/internal/interfaces/http/dto"
)

type transferInput struct {
	From   string `json:"from" binding:"required,marketplace_account"`
	Amount int    `json:"amount" binding:"required,min=1"`
}

func newValidationRouter() *gin.Engine {
	SetupValidator()
	router := gin.New()
	router.Use(RequestID())
	router.POST("/test", func(c *gin.Context) {
		var req transferInput
		if err := c.ShouldBindJSON(&req); err != nil {
			HandleValidationError(c, err)
			return
		}
		c.JSON(http.StatusOK, dto.NewSuccessResponse(req))
	})
	return router
}

func TestHandleValidationError(t *testing.T) {
	router := newValidationRouter()

	t.Run("reports each invalid field by its json name", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(`{"from":"EU","amount":0}`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(RequestIDHeader, "req-validate")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		require.Equal(t, http.StatusBadRequest, w.Code)
		var resp dto.Response
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.False(t, resp.Success)
		assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)
		assert.Equal(t, "req-validate", resp.Error.RequestID)
		require.Len(t, resp.Error.Details, 2)
		assert.Equal(t, "from", resp.Error.Details[0].Field)
		assert.Equal(t, `Unknown account "EU", expected MAIN or FBE`, resp.Error.Details[0].Message)
		assert.Equal(t, "amount", resp.Error.Details[1].Field)
		assert.Equal(t, "This field is required", resp.Error.Details[1].Message)
	})

	t.Run("valid input passes", func(t *testing.T) {
		for _, from := range []string{"MAIN", "fbe"} {
			req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(`{"from":"`+from+`","amount":2}`))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusOK, w.Code, from)
		}
	})
}

func TestGetValidationMessage(t *testing.T) {
	type sample struct {
		Required string `validate:"required"`
		Short    string `validate:"min=5"`
		Long     string `validate:"max=3"`
		Count    int    `validate:"gte=10"`
		ID       string `validate:"uuid"`
	}

	err := validator.New().Struct(sample{Long: "too long", ID: "nope"})
	require.Error(t, err)

	messages := map[string]string{}
	for _, e := range err.(validator.ValidationErrors) {
		messages[e.Field()] = getValidationMessage(e)
	}

	assert.Equal(t, "This field is required", messages["Required"])
	assert.Equal(t, "Must be at least 5 characters", messages["Short"])
	assert.Equal(t, "Must be at most 3 characters", messages["Long"])
	assert.Equal(t, "Must be greater than or equal to 10", messages["Count"])
	assert.Equal(t, "Invalid UUID format", messages["ID"])
}
