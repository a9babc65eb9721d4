package v1

import (
	"github.com/shenikar/sos_alert_system/internal/dashboard"
	"github.com/shenikar/sos_alert_system/internal/models"
	"github.com/shenikar/sos_alert_system/internal/service"
)

// DTOToCreateAlertInput преобразует DTO создания тревоги во входные данные сервиса
func DTOToCreateAlertInput(dto CreateAlertRequest) service.CreateAlertInput {
	input := service.CreateAlertInput{
		CategoryID:    models.CategoryID(dto.Category),
		LocationError: dto.LocationError,
		Reporter: models.Reporter{
			UserID:    dto.Reporter.UserID,
			UserName:  dto.Reporter.UserName,
			UserPhone: dto.Reporter.UserPhone,
		},
	}
	if dto.Location != nil {
		input.Location = &models.LocationFix{
			Lat:      dto.Location.Lat,
			Lng:      dto.Location.Lng,
			Accuracy: dto.Location.Accuracy,
		}
	}
	return input
}

// ModelToAlertResponse преобразует доменную модель в DTO для ответа
func ModelToAlertResponse(model *models.Alert) *AlertResponse {
	return &AlertResponse{
		ID:         model.ID,
		CategoryID: string(model.CategoryID),
		Category:   model.Category,
		Timestamp:  model.Timestamp,
		Location:   LocationResponse{Lat: model.Location.Lat, Lng: model.Location.Lng},
		Status:     string(model.Status),
		Reporter: ReporterResponse{
			UserID:    model.Reporter.UserID,
			UserName:  model.Reporter.UserName,
			UserPhone: model.Reporter.UserPhone,
		},
		Version: model.Version,
	}
}

// ModelsToAlertResponses преобразует слайс моделей в слайс DTO
func ModelsToAlertResponses(alerts []*models.Alert) []*AlertResponse {
	responses := make([]*AlertResponse, len(alerts))
	for i, alert := range alerts {
		responses[i] = ModelToAlertResponse(alert)
	}
	return responses
}

func CreationToResponse(creation *service.Creation) *CreateAlertResponse {
	resp := &CreateAlertResponse{
		Alert:            ModelToAlertResponse(creation.Alert),
		FallbackLocation: creation.HasLocationWarning(),
	}
	for _, w := range creation.Warnings {
		resp.Warnings = append(resp.Warnings, w.Error())
	}
	return resp
}

// CategoriesToResponse возвращает категории в порядке отображения
func CategoriesToResponse() []CategoryResponse {
	ids := models.Categories()
	out := make([]CategoryResponse, 0, len(ids))
	for _, id := range ids {
		label, err := models.LookupCategory(id)
		if err != nil {
			continue
		}
		out = append(out, CategoryResponse{ID: id, Label: label})
	}
	return out
}

func DTOToContactModel(reporterID string, dto ContactRequest) *models.Contact {
	return &models.Contact{
		ReporterID:   reporterID,
		Name:         dto.Name,
		Phone:        dto.Phone,
		Email:        dto.Email,
		Relationship: dto.Relationship,
	}
}

func ModelToContactResponse(model *models.Contact) *ContactResponse {
	return &ContactResponse{
		ID:           model.ID,
		Name:         model.Name,
		Phone:        model.Phone,
		Email:        model.Email,
		Relationship: model.Relationship,
		CreatedAt:    model.CreatedAt,
	}
}

func ModelsToContactResponses(contacts []*models.Contact) []*ContactResponse {
	responses := make([]*ContactResponse, len(contacts))
	for i, contact := range contacts {
		responses[i] = ModelToContactResponse(contact)
	}
	return responses
}

// ViewToSessionResponse отдает снимок сессии, отфильтрованный по статусу
func ViewToSessionResponse(view dashboard.View, status models.AlertStatus) *SessionResponse {
	return &SessionResponse{
		SessionID:   view.SessionID,
		Alerts:      ModelsToAlertResponses(view.Filter(status)),
		ActiveCount: view.ActiveCount,
		Counts:      view.Counts,
		PolledAt:    view.PolledAt,
	}
}
