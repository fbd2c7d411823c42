package echoapi

import (
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/alumnet/alumnet/core"
)

const (
	orderingParam    = "ordering"
	imageField       = "image"
	contextObjectKey = "object"
)

var errObjNotFoundInCtx = errors.New("object not found in echo.Context")

type Ordering struct {
	Orderings []core.DBOrdering
}

func (ord *Ordering) Bind(ctx echo.Context) {
	data := ctx.QueryParams()
	if len(data) == 0 {
		return
	}
	val, ok := data[orderingParam]
	if !ok || len(val) == 0 || val[0] == "" {
		return
	}

	for _, field := range strings.Split(val[0], ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
}

// bindImage opens the optional multipart image of the request. The returned closer is never nil.
func bindImage(ctx echo.Context) (*core.ImageFile, io.Closer, error) {
	if !strings.HasPrefix(ctx.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
		return nil, io.NopCloser(nil), nil
	}
	fh, err := ctx.FormFile(imageField)
	if err != nil {
		if err == http.ErrMissingFile {
			return nil, io.NopCloser(nil), nil
		}
		return nil, io.NopCloser(nil), errors.Wrap(err, "reading image")
	}
	file, err := fh.Open()
	if err != nil {
		return nil, io.NopCloser(nil), errors.Wrap(err, "opening image")
	}
	return &core.ImageFile{File: file, Filename: fh.Filename}, file, nil
}

type reactionData struct {
	Reaction string `json:"reaction" form:"reaction"`
}

func bindReaction(ctx echo.Context) (core.Reaction, error) {
	var data reactionData
	if err := ctx.Bind(&data); err != nil {
		return "", errors.Wrap(err, "binding to reactionData")
	}
	return core.ParseReaction(core.CleanString(data.Reaction, true))
}

type SuccessResponse struct {
	Success string `json:"success"`
}
