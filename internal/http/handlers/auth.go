package handlers

import (
	"github.com/valyala/fasthttp"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"impactledger/internal/config"
	dbpkg "impactledger/internal/db"
)

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// LoginSubmit handles POST /login, setting the session cookie used by
// the admin surface.
func LoginSubmit(db *gorm.DB) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		var req loginRequest
		if !decodeAndValidate(ctx, &req) {
			return
		}

		var user dbpkg.User
		if err := db.Where("username = ?", req.Username).First(&user).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				errResponse(ctx, fasthttp.StatusUnauthorized, "invalid username or password")
				return
			}
			storeErrResponse(ctx, err, "")
			return
		}

		if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
			errResponse(ctx, fasthttp.StatusUnauthorized, "invalid username or password")
			return
		}

		var c fasthttp.Cookie
		c.SetKey("session_user")
		c.SetValue(req.Username)
		c.SetPath("/")
		c.SetHTTPOnly(true)
		ctx.Response.Header.SetCookie(&c)

		jsonResponse(ctx, map[string]any{"username": user.Username, "is_admin": user.IsAdmin})
	}
}

// Logout handles POST /logout.
func Logout() fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		var c fasthttp.Cookie
		c.SetKey("session_user")
		c.SetValue("")
		c.SetPath("/")
		c.SetMaxAge(-1)
		ctx.Response.Header.SetCookie(&c)
		ctx.SetStatusCode(fasthttp.StatusNoContent)
	}
}

type createUserRequest struct {
	Username string `json:"username" validate:"required,max=64"`
	Password string `json:"password" validate:"required,min=8"`
}

// CreateUser handles POST /admin/users (admin only).
func CreateUser(db *gorm.DB) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		user, ok := MustUser(ctx)
		if !ok {
			return
		}
		if !user.IsAdmin {
			errResponse(ctx, fasthttp.StatusForbidden, "admin only")
			return
		}

		var req createUserRequest
		if !decodeAndValidate(ctx, &req) {
			return
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			errResponse(ctx, fasthttp.StatusInternalServerError, "failed to hash password")
			return
		}

		row := &dbpkg.User{Username: req.Username, PasswordHash: string(hash)}
		if err := db.Create(row).Error; err != nil {
			errResponse(ctx, fasthttp.StatusBadRequest, "failed to create user (username may already exist)")
			return
		}
		ctx.SetStatusCode(fasthttp.StatusCreated)
		jsonResponse(ctx, map[string]any{"id": row.ID, "username": row.Username})
	}
}

// DeleteUser handles DELETE /admin/users/{id} (admin only). The
// bootstrap admin cannot be removed.
func DeleteUser(db *gorm.DB, cfg *config.Config) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		user, ok := MustUser(ctx)
		if !ok {
			return
		}
		if !user.IsAdmin {
			errResponse(ctx, fasthttp.StatusForbidden, "admin only")
			return
		}
		id, ok := pathID(ctx, "id")
		if !ok {
			errResponse(ctx, fasthttp.StatusBadRequest, "invalid user id")
			return
		}

		var target dbpkg.User
		if err := db.First(&target, id).Error; err != nil {
			storeErrResponse(ctx, err, "user not found")
			return
		}
		if target.Username == cfg.AdminUser {
			errResponse(ctx, fasthttp.StatusForbidden, "cannot delete bootstrap admin user")
			return
		}

		if err := db.Delete(&target).Error; err != nil {
			storeErrResponse(ctx, err, "")
			return
		}
		ctx.SetStatusCode(fasthttp.StatusNoContent)
	}
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8"`
}

// ChangePasswordSelf handles POST /settings/password.
func ChangePasswordSelf(db *gorm.DB, cfg *config.Config) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		user, ok := MustUser(ctx)
		if !ok {
			return
		}
		if user.Username == cfg.AdminUser {
			errResponse(ctx, fasthttp.StatusForbidden, "cannot change password for bootstrap admin user")
			return
		}

		var req changePasswordRequest
		if !decodeAndValidate(ctx, &req) {
			return
		}

		if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.CurrentPassword)); err != nil {
			errResponse(ctx, fasthttp.StatusUnauthorized, "current password is incorrect")
			return
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
		if err != nil {
			errResponse(ctx, fasthttp.StatusInternalServerError, "failed to hash password")
			return
		}

		if err := db.Model(&dbpkg.User{}).Where("id = ?", user.ID).Update("password_hash", string(hash)).Error; err != nil {
			storeErrResponse(ctx, err, "")
			return
		}
		ctx.SetStatusCode(fasthttp.StatusNoContent)
	}
}
