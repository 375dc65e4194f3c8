package handlers

import (
	"crypto/rand"
	"encoding/base64"

	"github.com/valyala/fasthttp"
	"gorm.io/gorm"

	dbpkg "impactledger/internal/db"
)

func generateAPIKey() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return "il_" + base64.URLEncoding.EncodeToString(b), nil
}

type createAPIKeyRequest struct {
	Name string `json:"name" validate:"required,max=128"`
}

// CreateAPIKey handles POST /apikeys: mints a bearer token tied to the
// session user.
func CreateAPIKey(db *gorm.DB) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		user, ok := MustUser(ctx)
		if !ok {
			return
		}
		var req createAPIKeyRequest
		if !decodeAndValidate(ctx, &req) {
			return
		}

		key, err := generateAPIKey()
		if err != nil {
			errResponse(ctx, fasthttp.StatusInternalServerError, "failed to generate API key")
			return
		}

		apiKey := &dbpkg.APIKey{
			UserID: user.ID,
			Name:   req.Name,
			Key:    key,
			Active: true,
		}
		if err := db.Create(apiKey).Error; err != nil {
			errResponse(ctx, fasthttp.StatusBadRequest, "failed to create API key")
			return
		}

		ctx.SetStatusCode(fasthttp.StatusCreated)
		jsonResponse(ctx, map[string]any{"id": apiKey.ID, "name": apiKey.Name, "key": apiKey.Key})
	}
}

// DeleteAPIKey handles DELETE /apikeys/{id}.
func DeleteAPIKey(db *gorm.DB) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		user, ok := MustUser(ctx)
		if !ok {
			return
		}
		id, ok := pathID(ctx, "id")
		if !ok {
			errResponse(ctx, fasthttp.StatusBadRequest, "invalid api key id")
			return
		}

		var apiKey dbpkg.APIKey
		if err := db.First(&apiKey, id).Error; err != nil {
			storeErrResponse(ctx, err, "API key not found")
			return
		}
		if apiKey.UserID != user.ID && !user.IsAdmin {
			errResponse(ctx, fasthttp.StatusNotFound, "API key not found")
			return
		}

		if err := db.Delete(&apiKey).Error; err != nil {
			storeErrResponse(ctx, err, "")
			return
		}
		ctx.SetStatusCode(fasthttp.StatusNoContent)
	}
}

type setActiveAPIKeyRequest struct {
	Active *bool `json:"active" validate:"required"`
}

// SetActiveAPIKey handles PUT /apikeys/{id}/active.
func SetActiveAPIKey(db *gorm.DB) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		user, ok := MustUser(ctx)
		if !ok {
			return
		}
		id, ok := pathID(ctx, "id")
		if !ok {
			errResponse(ctx, fasthttp.StatusBadRequest, "invalid api key id")
			return
		}
		var req setActiveAPIKeyRequest
		if !decodeAndValidate(ctx, &req) {
			return
		}

		var apiKey dbpkg.APIKey
		if err := db.First(&apiKey, id).Error; err != nil {
			storeErrResponse(ctx, err, "API key not found")
			return
		}
		if apiKey.UserID != user.ID && !user.IsAdmin {
			errResponse(ctx, fasthttp.StatusNotFound, "API key not found")
			return
		}

		if err := db.Model(&apiKey).Update("active", *req.Active).Error; err != nil {
			storeErrResponse(ctx, err, "")
			return
		}
		jsonResponse(ctx, map[string]any{"id": apiKey.ID, "active": *req.Active})
	}
}
