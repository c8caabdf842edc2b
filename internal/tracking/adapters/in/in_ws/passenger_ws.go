package in_ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/BBB-bus-buddy-buddy/App-Backend-sub000/internal/shared/auth"
	"github.com/BBB-bus-buddy-buddy/App-Backend-sub000/internal/shared/logger"
	"github.com/BBB-bus-buddy-buddy/App-Backend-sub000/internal/shared/ws"
	portsin "github.com/BBB-bus-buddy-buddy/App-Backend-sub000/internal/tracking/application/ports/in"
	"github.com/BBB-bus-buddy-buddy/App-Backend-sub000/internal/tracking/adapters/out/out_ws"
	"github.com/BBB-bus-buddy-buddy/App-Backend-sub000/internal/tracking/cache"
	"github.com/BBB-bus-buddy-buddy/App-Backend-sub000/internal/tracking/detector"
	"github.com/BBB-bus-buddy-buddy/App-Backend-sub000/internal/tracking/domain"
)

// PassengerWSHandler обрабатывает WebSocket соединения пассажиров:
// подписка на рассылку организации, GPS-сэмплы для автоматического
// определения посадки, ручная посадка/высадка.
type PassengerWSHandler struct {
	hub         *ws.Hub
	engine      *detector.Engine
	queries     portsin.OperationQueriesUseCase
	locations   *cache.LocationCache
	broadcaster *out_ws.Broadcaster
	log         *logger.Logger
}

// NewPassengerWSHandler создает handler пассажирских соединений
func NewPassengerWSHandler(
	jwtSvc *auth.JWTService,
	engine *detector.Engine,
	queries portsin.OperationQueriesUseCase,
	locations *cache.LocationCache,
	broadcaster *out_ws.Broadcaster,
	log *logger.Logger,
) *PassengerWSHandler {
	authFunc := func(token string) (userID, role, organizationID string, err error) {
		claims, err := jwtSvc.ValidateToken(token)
		if err != nil {
			return "", "", "", err
		}
		if claims.Role != "PASSENGER" && claims.Role != "ADMIN" {
			return "", "", "", fmt.Errorf("invalid role: %s (expected PASSENGER or ADMIN)", claims.Role)
		}
		return claims.UserID, claims.Role, claims.OrganizationID, nil
	}

	hub := ws.NewHub(authFunc, log)

	handler := &PassengerWSHandler{
		hub:         hub,
		engine:      engine,
		queries:     queries,
		locations:   locations,
		broadcaster: broadcaster,
		log:         log,
	}

	hub.SetMessageHandler(handler.handleMessage)
	hub.SetDisconnectHandler(func(client *ws.Client) { broadcaster.Unregister(client) })

	return handler
}

// GetHub возвращает WebSocket hub
func (h *PassengerWSHandler) GetHub() *ws.Hub {
	return h.hub
}

// ServeWS обрабатывает WebSocket соединение пассажира
func (h *PassengerWSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	h.hub.ServeWS(w, r)
}

// handleMessage обрабатывает входящие сообщения от пассажиров
func (h *PassengerWSHandler) handleMessage(client *ws.Client, msgType string, data json.RawMessage) error {
	ctx := context.Background()

	switch msgType {
	case "subscribe":
		return h.handleSubscribe(ctx, client, data)

	case "location":
		return h.handleLocation(ctx, client, data)

	case "manualBoarding":
		return h.handleManualBoarding(ctx, client, data)

	case "heartbeat":
		return client.SendJSON(map[string]any{
			"type":      "heartbeat_response",
			"timestamp": time.Now().UnixMilli(),
		})

	default:
		h.log.Warn(logger.Entry{
			Action:  "passenger_ws_unknown_message_type",
			Message: msgType,
			Additional: map[string]any{
				"user_id": client.UserID,
			},
		})
	}

	return nil
}

func (h *PassengerWSHandler) handleSubscribe(ctx context.Context, client *ws.Client, data json.RawMessage) error {
	var req struct {
		OrganizationID string `json:"organizationId"`
	}
	if err := json.Unmarshal(data, &req); err != nil || req.OrganizationID == "" {
		// Организация из токена, если в сообщении не прислали
		req.OrganizationID = client.OrganizationID
	}
	if req.OrganizationID == "" {
		return client.SendJSON(map[string]any{
			"type":  "error",
			"error": "organizationId is required",
		})
	}

	h.broadcaster.RegisterPassenger(client, req.OrganizationID, client.UserID)

	return client.SendJSON(map[string]any{
		"type":           "subscribed",
		"organizationId": req.OrganizationID,
		"activeBuses":    h.activeBuses(ctx, req.OrganizationID),
	})
}

// activeBusInfo — позиция активного рейса в ответе на подписку
type activeBusInfo struct {
	OperationID string  `json:"operationId"`
	BusNumber   string  `json:"busNumber,omitempty"`
	Latitude    float64 `json:"latitude,omitempty"`
	Longitude   float64 `json:"longitude,omitempty"`
}

// activeBuses собирает стартовый снапшот для нового подписчика: рейсы
// организации в статусе IN_PROGRESS с последней закэшированной точкой.
// Сбой запроса не мешает подписке, пассажир получит позиции с рассылкой.
func (h *PassengerWSHandler) activeBuses(ctx context.Context, organizationID string) []activeBusInfo {
	ops, err := h.queries.ActiveOperations(ctx, organizationID)
	if err != nil {
		h.log.Warn(logger.Entry{
			Action:  "active_operations_query_failed",
			Message: err.Error(),
		})
		return nil
	}

	infos := make([]activeBusInfo, 0, len(ops))
	for _, op := range ops {
		info := activeBusInfo{OperationID: op.OperationID}
		if entry, ok := h.locations.Get(op.OperationID); ok {
			info.BusNumber = entry.Sample.BusNumber
			info.Latitude = entry.Sample.Latitude
			info.Longitude = entry.Sample.Longitude
		}
		infos = append(infos, info)
	}
	return infos
}

func (h *PassengerWSHandler) handleLocation(ctx context.Context, client *ws.Client, data json.RawMessage) error {
	var req struct {
		OrganizationID string `json:"organizationId"`
		Data           struct {
			UserID    string  `json:"userId"`
			Latitude  float64 `json:"latitude"`
			Longitude float64 `json:"longitude"`
		} `json:"data"`
	}
	if err := json.Unmarshal(data, &req); err != nil {
		return fmt.Errorf("invalid location payload: %w", err)
	}

	orgID := req.OrganizationID
	if orgID == "" {
		orgID = client.OrganizationID
	}
	userID := req.Data.UserID
	if userID == "" {
		userID = client.UserID
	}

	result, err := h.engine.ProcessLocation(ctx, userID, orgID, req.Data.Latitude, req.Data.Longitude)
	if err != nil {
		h.log.Warn(logger.Entry{
			Action:  "process_passenger_location_failed",
			Message: err.Error(),
			Additional: map[string]any{
				"user_id": userID,
			},
		})
		return nil
	}
	if result == nil {
		// Событие не зафиксировано, дебаунс продолжается
		return nil
	}

	return client.SendJSON(map[string]any{
		"type": "boardingDetected",
		"data": result,
	})
}

func (h *PassengerWSHandler) handleManualBoarding(ctx context.Context, client *ws.Client, data json.RawMessage) error {
	var req struct {
		OrganizationID string `json:"organizationId"`
		Data           struct {
			BusNumber string `json:"busNumber"`
			UserID    string `json:"userId"`
			Action    string `json:"action"` // BOARD | ALIGHT
		} `json:"data"`
	}
	if err := json.Unmarshal(data, &req); err != nil {
		return fmt.Errorf("invalid manualBoarding payload: %w", err)
	}

	orgID := req.OrganizationID
	if orgID == "" {
		orgID = client.OrganizationID
	}
	userID := req.Data.UserID
	if userID == "" {
		userID = client.UserID
	}

	var result *domain.BoardingDetectionResult
	var err error
	switch domain.BoardingAction(req.Data.Action) {
	case domain.ActionBoard:
		result, err = h.engine.ManualBoard(ctx, userID, orgID, req.Data.BusNumber)
	case domain.ActionAlight:
		result, err = h.engine.ManualAlight(ctx, userID, orgID, req.Data.BusNumber)
	default:
		return client.SendJSON(map[string]any{
			"type":    "boardingResult",
			"success": false,
			"message": fmt.Sprintf("unknown action %q", req.Data.Action),
			"action":  req.Data.Action,
		})
	}

	if err != nil {
		message := "internal error"
		var de *domain.DomainError
		if errors.As(err, &de) {
			message = de.Message
		} else {
			h.log.Error(logger.Entry{
				Action:  "manual_boarding_failed",
				Message: err.Error(),
				Error:   &logger.ErrObj{Msg: err.Error()},
			})
		}
		return client.SendJSON(map[string]any{
			"type":    "boardingResult",
			"success": false,
			"message": message,
			"action":  req.Data.Action,
		})
	}

	return client.SendJSON(map[string]any{
		"type":    "boardingResult",
		"success": result.Successful,
		"message": result.Message,
		"action":  string(result.Action),
	})
}
