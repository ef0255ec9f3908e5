package httpapi

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"agrilog/internal/adapters/exports"
	"agrilog/internal/auth"
	"agrilog/internal/core"
)

type handlers struct {
	svc     *core.Service
	exports Exporter
	tokens  *auth.TokenIssuer
}

func bind(c echo.Context, dst any) error {
	if err := (&echo.DefaultBinder{}).BindBody(c, dst); err != nil {
		return BadRequest("can not understand the requested json", err)
	}
	return nil
}

func (h *handlers) register(c echo.Context) error {
	var req registerRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	user, _, err := h.svc.Register(c.Request().Context(), core.Registration{
		Email:           req.Email,
		Password:        req.Password,
		PasswordConfirm: req.PasswordConfirm,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, mutationResponse{Message: "account created", Data: newUserResponse(user)})
}

func (h *handlers) login(c echo.Context) error {
	var req loginRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	user, err := h.svc.Authenticate(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return err
	}
	token, exp, err := h.tokens.Issue(user.ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, loginResponse{Token: token, ExpiresAt: exp, User: newUserResponse(user)})
}

func (h *handlers) profile(c echo.Context) error {
	profile, err := h.svc.Profile(c.Request().Context(), currentUserID(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, profileResponse{
		User:       newUserResponse(profile.User),
		FieldCount: profile.FieldCount,
		TotalArea:  profile.TotalArea,
	})
}

func (h *handlers) dashboard(c echo.Context) error {
	dashboard, err := h.svc.Dashboard(c.Request().Context(), currentUserID(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, dashboard)
}

func (h *handlers) listCropTypes(c echo.Context) error {
	crops, err := h.svc.ListCropTypes(c.Request().Context(), c.QueryParam("q"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, crops)
}

func (h *handlers) createCropType(c echo.Context) error {
	var req cropTypeRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	crop, res, err := h.svc.CreateCropType(c.Request().Context(), currentUserID(c), req.Name)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, mutated("crop type added", crop, res))
}

func (h *handlers) listFields(c echo.Context) error {
	fields, err := h.svc.ListFields(c.Request().Context(), currentUserID(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, fields)
}

func (h *handlers) createField(c echo.Context) error {
	var req fieldRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	field, res, err := h.svc.CreateField(c.Request().Context(), currentUserID(c), req.input())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, mutated("field added", field, res))
}

func (h *handlers) getField(c echo.Context) error {
	detail, err := h.svc.GetFieldDetail(c.Request().Context(), currentUserID(c), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, detail)
}

func (h *handlers) updateField(c echo.Context) error {
	var req fieldRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	field, res, err := h.svc.UpdateField(c.Request().Context(), currentUserID(c), c.Param("id"), req.input())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, mutated("field updated", field, res))
}

func (h *handlers) updateFieldNotes(c echo.Context) error {
	var req notesRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	field, res, err := h.svc.UpdateFieldNotes(c.Request().Context(), currentUserID(c), c.Param("id"), req.Notes)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, mutated("notes updated", field, res))
}

func (h *handlers) deleteField(c echo.Context) error {
	res, err := h.svc.DeleteField(c.Request().Context(), currentUserID(c), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, mutated("field deleted", nil, res))
}

func (h *handlers) listTreatments(c echo.Context) error {
	treatments, err := h.svc.ListTreatments(c.Request().Context(), currentUserID(c), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, treatments)
}

func (h *handlers) recordTreatment(c echo.Context) error {
	var req treatmentRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	date, err := parseDate("date", req.Date)
	if err != nil {
		return err
	}
	treatment, res, err := h.svc.RecordTreatment(c.Request().Context(), currentUserID(c), c.Param("id"), core.TreatmentInput{
		Type:        req.TreatmentType,
		Date:        date,
		CropTypeID:  req.CropTypeID,
		Description: req.Description,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, mutated("treatment added", treatment, res))
}

func (h *handlers) cultivationHistory(c echo.Context) error {
	filter, err := parseHistoryFilter(c.QueryParam("status"), c.QueryParam("year"), c.QueryParam("field"), c.QueryParam("crop_type"))
	if err != nil {
		return err
	}
	page, err := h.svc.CultivationHistory(c.Request().Context(), currentUserID(c), parsePage(c.QueryParam("page")), filter)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, page)
}

func (h *handlers) getCultivation(c echo.Context) error {
	cultivation, err := h.svc.GetCultivation(c.Request().Context(), currentUserID(c), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, cultivation)
}

func (h *handlers) getCultivationBySlug(c echo.Context) error {
	cultivation, err := h.svc.GetCultivationBySlug(c.Request().Context(), currentUserID(c), c.Param("slug"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, cultivation)
}

func (h *handlers) updateCultivation(c echo.Context) error {
	var req cultivationRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	sowing, err := parseDate("sowing_date", req.SowingDate)
	if err != nil {
		return err
	}
	cultivation, res, err := h.svc.UpdateCultivation(c.Request().Context(), currentUserID(c), c.Param("id"), core.CultivationUpdate{
		Status:      req.Status,
		SowingDate:  sowing,
		YieldAmount: req.YieldAmount,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, mutated("cultivation updated", cultivation, res))
}

func (h *handlers) updateCultivationNotes(c echo.Context) error {
	var req notesRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	cultivation, res, err := h.svc.UpdateCultivationNotes(c.Request().Context(), currentUserID(c), c.Param("id"), req.Notes)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, mutated("notes updated", cultivation, res))
}

func (h *handlers) enqueueExport(c echo.Context) error {
	var req exportRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	filter, err := parseHistoryFilter(req.Status, "", req.FieldID, req.CropTypeID)
	if err != nil {
		return err
	}
	filter.Year = req.Year
	formats := make([]exports.Format, 0, len(req.Formats))
	for _, raw := range req.Formats {
		format, err := exports.ParseFormat(raw)
		if err != nil {
			return err
		}
		formats = append(formats, format)
	}
	record, err := h.exports.EnqueueExport(c.Request().Context(), exports.Input{
		OwnerID: currentUserID(c),
		Formats: formats,
		Filter:  filter,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusAccepted, record)
}

func (h *handlers) getExport(c echo.Context) error {
	record, err := h.exports.GetExport(currentUserID(c), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, record)
}

func (h *handlers) downloadExport(c echo.Context) error {
	format, err := exports.ParseFormat(c.Param("format"))
	if err != nil {
		return err
	}
	artifact, body, err := h.exports.DownloadArtifact(c.Request().Context(), currentUserID(c), c.Param("id"), format)
	if err != nil {
		return err
	}
	defer body.Close()
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", "cultivations."+format.Extension()))
	return c.Stream(http.StatusOK, artifact.ContentType, body)
}
