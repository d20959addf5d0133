package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/quieromudarme/go-housing-backend/internal/domain"
	"github.com/quieromudarme/go-housing-backend/internal/services"
)

func userRouter(h *Handlers) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/users/contact", h.RegisterContact)
	r.PUT("/users/:id/tier", h.ChangeTier)
	return r
}

func TestRegisterContact_BadJSON_Success_Internal(t *testing.T) {
	// Bad JSON -> 400
	{
		r := userRouter(newTestHandlers(nil))
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/users/contact", bytes.NewBufferString("{bad"))
		r.ServeHTTP(w, req)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("bad json -> %d", w.Code)
		}
	}

	// Missing telegram_id -> 400
	{
		r := userRouter(newTestHandlers(nil))
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/users/contact", bytes.NewBufferString(`{"username":"ana"}`))
		r.ServeHTTP(w, req)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("missing telegram_id -> %d", w.Code)
		}
	}

	// Success -> 200 with the registered user
	{
		db := newHandlersDB(t)
		svc := &services.UserService{DB: db}
		h := New(svc, stubIngest{}, stubAdmin{}, stubNotify{}, db, 0)
		r := userRouter(h)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/users/contact", bytes.NewBufferString(`{"telegram_id":7,"username":" ana "}`))
		r.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("register -> %d body=%s", w.Code, w.Body.String())
		}
		var out domain.User
		if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
			t.Fatalf("json: %v", err)
		}
		if out.TelegramID != 7 || out.TelegramUsername == nil || *out.TelegramUsername != "ana" {
			t.Fatalf("unexpected user: %#v", out)
		}
	}

	// Internal error -> 500
	{
		h := New(stubAccounts{
			register: func(context.Context, int64, string) (*domain.User, error) {
				return nil, gorm.ErrInvalidField
			},
		}, stubIngest{}, stubAdmin{}, stubNotify{}, nil, 0)
		r := userRouter(h)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/users/contact", bytes.NewBufferString(`{"telegram_id":7}`))
		r.ServeHTTP(w, req)
		if w.Code != http.StatusInternalServerError {
			t.Fatalf("internal -> %d", w.Code)
		}
	}
}

func TestChangeTier_Validation_NotFound_Success(t *testing.T) {
	// Non-UUID path param -> 400
	{
		r := userRouter(newTestHandlers(nil))
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPut, "/users/not-a-uuid/tier", bytes.NewBufferString(`{"tier":"premium"}`))
		r.ServeHTTP(w, req)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("bad uuid -> %d", w.Code)
		}
	}

	// Unknown tier rejected by binding -> 400
	{
		r := userRouter(newTestHandlers(nil))
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPut, "/users/"+uuid.NewString()+"/tier", bytes.NewBufferString(`{"tier":"gold"}`))
		r.ServeHTTP(w, req)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("bad tier -> %d", w.Code)
		}
	}

	// Service reports unknown user -> 404
	{
		h := New(stubAccounts{
			tier: func(context.Context, string, domain.Tier) error { return services.ErrUserNotFound },
		}, stubIngest{}, stubAdmin{}, stubNotify{}, nil, 0)
		r := userRouter(h)
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPut, "/users/"+uuid.NewString()+"/tier", bytes.NewBufferString(`{"tier":"premium"}`))
		r.ServeHTTP(w, req)
		if w.Code != http.StatusNotFound {
			t.Fatalf("not found -> %d", w.Code)
		}
	}

	// Success -> 204, persisted tier
	{
		db := newHandlersDB(t)
		svc := &services.UserService{DB: db}
		h := New(svc, stubIngest{}, stubAdmin{}, stubNotify{}, db, 0)
		u, err := svc.RegisterContact(context.Background(), 7, "ana")
		if err != nil {
			t.Fatalf("seed user: %v", err)
		}

		r := userRouter(h)
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPut, "/users/"+u.ID+"/tier", bytes.NewBufferString(`{"tier":"premium"}`))
		r.ServeHTTP(w, req)
		if w.Code != http.StatusNoContent {
			t.Fatalf("change tier -> %d body=%s", w.Code, w.Body.String())
		}

		var got domain.User
		if err := db.First(&got, "id = ?", u.ID).Error; err != nil {
			t.Fatalf("reload: %v", err)
		}
		if !got.IsPremium() {
			t.Fatalf("tier not persisted: %s", got.Tier)
		}
	}
}
