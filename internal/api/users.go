package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"task-tracker/internal/model"
	"task-tracker/internal/service"
)

type credentials struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userUpdateRequest struct {
	Username *string `json:"username"`
	Email    *string `json:"email"`
	Password *string `json:"password"`
}

func register(accounts Accounts) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req credentials
		if err := c.Bind(&req); err != nil {
			return err
		}
		user, err := accounts.Register(c.Request().Context(), req.Username, req.Email, req.Password)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusCreated, echo.Map{
			"message": "User registered successfully",
			"user":    user.Ref(),
		})
	}
}

func login(accounts Accounts) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req credentials
		if err := c.Bind(&req); err != nil {
			return err
		}
		token, user, err := accounts.Login(c.Request().Context(), req.Email, req.Password)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, echo.Map{
			"message": "Login successful",
			"token":   token,
			"user":    user.Ref(),
		})
	}
}

func listUsers(accounts Accounts) echo.HandlerFunc {
	return func(c echo.Context) error {
		users, err := accounts.ListUsers(c.Request().Context())
		if err != nil {
			return err
		}
		if users == nil {
			users = []model.User{}
		}
		return c.JSON(http.StatusOK, users)
	}
}

func getUser(accounts Accounts) echo.HandlerFunc {
	return func(c echo.Context) error {
		user, err := accounts.GetUser(c.Request().Context(), c.Param("id"))
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, echo.Map{"data": user})
	}
}

func updateUser(accounts Accounts) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req userUpdateRequest
		if err := c.Bind(&req); err != nil {
			return err
		}
		user, err := accounts.UpdateUser(c.Request().Context(), c.Param("id"), service.UserUpdate{
			Username: req.Username,
			Email:    req.Email,
			Password: req.Password,
		})
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, echo.Map{"data": user})
	}
}

func deleteUser(accounts Accounts) echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := accounts.DeleteUser(c.Request().Context(), c.Param("id")); err != nil {
			return err
		}
		return c.JSON(http.StatusOK, echo.Map{"message": "User deleted successfully"})
	}
}
