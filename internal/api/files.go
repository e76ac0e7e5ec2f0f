package api

import (
	"net/http"
	"path/filepath"
	"strings"

	"github.com/labstack/echo/v4"

	"task-tracker/internal/apperr"
	"task-tracker/internal/blob"
)

type fileResponse struct {
	blob.Object
	Extension string `json:"extension"`
	URL       string `json:"url"`
}

func newFileResponse(obj blob.Object, baseURL string) fileResponse {
	return fileResponse{
		Object:    obj,
		Extension: strings.ToLower(filepath.Ext(obj.Key)),
		URL:       strings.TrimRight(baseURL, "/") + "/uploads/" + obj.Key,
	}
}

func uploadFile(files blob.Store, baseURL string) echo.HandlerFunc {
	return func(c echo.Context) error {
		fh, err := c.FormFile("file")
		if err != nil {
			return apperr.New(apperr.BadRequest, "No file uploaded")
		}
		src, err := fh.Open()
		if err != nil {
			return apperr.Wrap(err, apperr.BadRequest, "cannot read uploaded file")
		}
		defer src.Close()

		obj, err := files.Put(c.Request().Context(), src, fh.Filename, fh.Header.Get(echo.HeaderContentType))
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, echo.Map{
			"message": "File uploaded successfully",
			"file":    newFileResponse(obj, baseURL),
		})
	}
}

func listFiles(files blob.Store, baseURL string) echo.HandlerFunc {
	return func(c echo.Context) error {
		objs, err := files.List(c.Request().Context())
		if err != nil {
			return err
		}
		out := make([]fileResponse, 0, len(objs))
		for _, obj := range objs {
			out = append(out, newFileResponse(obj, baseURL))
		}
		return c.JSON(http.StatusOK, echo.Map{"files": out})
	}
}

func fileInfo(files blob.Store, baseURL string) echo.HandlerFunc {
	return func(c echo.Context) error {
		obj, err := files.Stat(c.Request().Context(), c.Param("filename"))
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, newFileResponse(obj, baseURL))
	}
}

func downloadFile(files blob.Store) echo.HandlerFunc {
	return func(c echo.Context) error {
		rc, name, err := files.Download(c.Request().Context(), c.Param("filename"))
		if err != nil {
			return err
		}
		defer rc.Close()
		c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+strings.ReplaceAll(name, `"`, "")+`"`)
		return c.Stream(http.StatusOK, blob.GuessMIME(name), rc)
	}
}

func deleteFile(files blob.Store) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		key := c.Param("filename")
		if !files.Exists(ctx, key) {
			return apperr.New(apperr.NotFound, "File not found")
		}
		if err := files.Delete(ctx, key); err != nil {
			return err
		}
		return c.JSON(http.StatusOK, echo.Map{
			"message":  "File deleted successfully",
			"filename": key,
		})
	}
}
