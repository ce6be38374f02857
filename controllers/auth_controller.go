package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/phillip/event-manager-go/identity"
	"github.com/phillip/event-manager-go/utils"
	"github.com/phillip/event-manager-go/validation"
)

// ---------------- REGISTER ----------------
func Register(app *App) gin.HandlerFunc {
	return func(c *gin.Context) {
		creds, ok := bindCredentials(c, app)
		if !ok {
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		account, err := app.Identity.SignUp(ctx, creds.Email, creds.Password, creds.DisplayName)
		switch {
		case errors.Is(err, identity.ErrEmailExists):
			abort(c, utils.Conflict("email already registered"))
			return
		case errors.Is(err, identity.ErrWeakPassword):
			abort(c, utils.ValidationError("password is too weak"))
			return
		case err != nil:
			abort(c, utils.Internal("could not register user", err))
			return
		}

		c.JSON(http.StatusCreated, account)
	}
}

// ---------------- LOGIN ----------------
func Login(app *App) gin.HandlerFunc {
	return func(c *gin.Context) {
		creds, ok := bindCredentials(c, app)
		if !ok {
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		session, err := app.Identity.SignIn(ctx, creds.Email, creds.Password)
		if errors.Is(err, identity.ErrInvalidCredentials) {
			abort(c, utils.Unauthorized("invalid email or password"))
			return
		}
		if err != nil {
			abort(c, utils.Internal("could not sign in", err))
			return
		}

		c.JSON(http.StatusOK, session)
	}
}

// ---------------- TEST AUTH ----------------
func TestAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := requirePrincipal(c)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"message": "authenticated",
			"user":    p,
		})
	}
}

func bindCredentials(c *gin.Context, app *App) (validation.CredentialsInput, bool) {
	var input validation.CredentialsInput
	if err := c.ShouldBindJSON(&input); err != nil {
		abort(c, utils.ValidationError("invalid JSON body"))
		return input, false
	}
	creds, err := app.Validator.Credentials(input)
	if err != nil {
		abort(c, validationFailed(err))
		return creds, false
	}
	return creds, true
}
