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
	"github.com/BBB-bus-buddy-buddy/App-Backend-sub000/internal/tracking/domain"
)

// DriverWSHandler обрабатывает WebSocket соединения водителей.
//
// Поддерживаются два формата точки: типизированный
// {type:"location", data:{...}} и легаси без поля type, где точка —
// все тело сообщения.
type DriverWSHandler struct {
	hub         *ws.Hub
	ingest      portsin.IngestLocationUseCase
	start       portsin.StartOperationUseCase
	end         portsin.EndOperationUseCase
	queries     portsin.OperationQueriesUseCase
	broadcaster *out_ws.Broadcaster
	log         *logger.Logger
}

// driverAck — подтверждение сервера на сообщение водителя
type driverAck struct {
	Status    string `json:"status"` // success | error
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}

// NewDriverWSHandler создает handler водительских соединений
func NewDriverWSHandler(
	jwtSvc *auth.JWTService,
	ingest portsin.IngestLocationUseCase,
	start portsin.StartOperationUseCase,
	end portsin.EndOperationUseCase,
	queries portsin.OperationQueriesUseCase,
	broadcaster *out_ws.Broadcaster,
	log *logger.Logger,
) *DriverWSHandler {
	authFunc := func(token string) (userID, role, organizationID string, err error) {
		claims, err := jwtSvc.ValidateToken(token)
		if err != nil {
			return "", "", "", err
		}
		if claims.Role != "DRIVER" && claims.Role != "ADMIN" {
			return "", "", "", fmt.Errorf("invalid role: %s (expected DRIVER or ADMIN)", claims.Role)
		}
		return claims.UserID, claims.Role, claims.OrganizationID, nil
	}

	hub := ws.NewHub(authFunc, log)

	handler := &DriverWSHandler{
		hub:         hub,
		ingest:      ingest,
		start:       start,
		end:         end,
		queries:     queries,
		broadcaster: broadcaster,
		log:         log,
	}

	hub.SetMessageHandler(handler.handleMessage)
	hub.SetDisconnectHandler(func(client *ws.Client) { broadcaster.Unregister(client) })

	return handler
}

// GetHub возвращает WebSocket hub
func (h *DriverWSHandler) GetHub() *ws.Hub {
	return h.hub
}

// ServeWS обрабатывает WebSocket соединение водителя
func (h *DriverWSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	h.hub.ServeWS(w, r)
}

// handleMessage обрабатывает входящие сообщения от водителей
func (h *DriverWSHandler) handleMessage(client *ws.Client, msgType string, data json.RawMessage) error {
	ctx := context.Background()

	switch msgType {
	case "location", "": // пустой тип — легаси-формат
		return h.handleLocation(ctx, client, data)

	case "startOperation":
		return h.handleStart(ctx, client, data)

	case "endOperation":
		return h.handleEnd(ctx, client, data)

	case "myOperations":
		return h.handleMyOperations(ctx, client, data)

	case "heartbeat":
		return client.SendJSON(map[string]any{
			"type":      "heartbeat_response",
			"timestamp": time.Now().UnixMilli(),
		})

	default:
		h.log.Warn(logger.Entry{
			Action:  "driver_ws_unknown_message_type",
			Message: msgType,
			Additional: map[string]any{
				"user_id": client.UserID,
			},
		})
		return h.ack(client, "error", fmt.Sprintf("unknown message type %q", msgType))
	}
}

func (h *DriverWSHandler) handleLocation(ctx context.Context, client *ws.Client, data json.RawMessage) error {
	var sample domain.DriverLocationSample
	if err := json.Unmarshal(data, &sample); err != nil {
		return h.ack(client, "error", "invalid location payload")
	}
	if sample.OperationID == "" {
		return h.ack(client, "error", "operationId is required")
	}

	status, err := h.ingest.Execute(ctx, sample)
	if err != nil {
		// Причины отклонения точки водителю полезно видеть как есть
		var de *domain.DomainError
		if errors.As(err, &de) {
			return h.ack(client, "error", de.Message)
		}
		h.log.Error(logger.Entry{
			Action:      "ingest_location_failed",
			Message:     err.Error(),
			OperationID: sample.OperationID,
			Error:       &logger.ErrObj{Msg: err.Error()},
		})
		return h.ack(client, "error", "internal error")
	}

	// Запоминаем соединение водителя за рейсом
	h.broadcaster.RegisterDriver(client, sample.OperationID)

	return h.ack(client, "success", fmt.Sprintf("location accepted, %d passengers", status.CurrentPassengers))
}

func (h *DriverWSHandler) handleStart(ctx context.Context, client *ws.Client, data json.RawMessage) error {
	var req struct {
		OperationID string  `json:"operationId"`
		Latitude    float64 `json:"latitude"`
		Longitude   float64 `json:"longitude"`
		EarlyStart  bool    `json:"earlyStart"`
	}
	if err := json.Unmarshal(data, &req); err != nil {
		return h.ack(client, "error", "invalid start payload")
	}

	snapshot, err := h.start.Execute(ctx, portsin.StartOperationInput{
		OperationID:    req.OperationID,
		DriverID:       client.UserID,
		OrganizationID: client.OrganizationID,
		Latitude:       req.Latitude,
		Longitude:      req.Longitude,
		EarlyStart:     req.EarlyStart,
	})
	if err != nil {
		var de *domain.DomainError
		if errors.As(err, &de) {
			return h.ack(client, "error", de.Message)
		}
		return h.ack(client, "error", "internal error")
	}

	h.broadcaster.RegisterDriver(client, snapshot.OperationID)

	return client.SendJSON(map[string]any{
		"type": "operationStarted",
		"data": snapshot,
	})
}

func (h *DriverWSHandler) handleEnd(ctx context.Context, client *ws.Client, data json.RawMessage) error {
	var req struct {
		OperationID string  `json:"operationId"`
		Latitude    float64 `json:"latitude"`
		Longitude   float64 `json:"longitude"`
		EndReason   string  `json:"endReason"`
	}
	if err := json.Unmarshal(data, &req); err != nil {
		return h.ack(client, "error", "invalid end payload")
	}

	snapshot, err := h.end.Execute(ctx, portsin.EndOperationInput{
		OperationID:    req.OperationID,
		DriverID:       client.UserID,
		OrganizationID: client.OrganizationID,
		Latitude:       req.Latitude,
		Longitude:      req.Longitude,
		EndReason:      req.EndReason,
	})
	if err != nil {
		var de *domain.DomainError
		if errors.As(err, &de) {
			return h.ack(client, "error", de.Message)
		}
		return h.ack(client, "error", "internal error")
	}

	return client.SendJSON(map[string]any{
		"type": "operationCompleted",
		"data": snapshot,
	})
}

// handleMyOperations возвращает водителю список его рейсов
func (h *DriverWSHandler) handleMyOperations(ctx context.Context, client *ws.Client, data json.RawMessage) error {
	var req struct {
		Limit int `json:"limit"`
	}
	_ = json.Unmarshal(data, &req) // пустое тело — лимит по умолчанию

	ops, err := h.queries.DriverOperations(ctx, client.UserID, req.Limit)
	if err != nil {
		h.log.Error(logger.Entry{
			Action:  "driver_operations_query_failed",
			Message: err.Error(),
			Error:   &logger.ErrObj{Msg: err.Error()},
			Additional: map[string]any{
				"user_id": client.UserID,
			},
		})
		return h.ack(client, "error", "internal error")
	}

	return client.SendJSON(map[string]any{
		"type": "operationList",
		"data": ops,
	})
}

func (h *DriverWSHandler) ack(client *ws.Client, status, message string) error {
	return client.SendJSON(driverAck{
		Status:    status,
		Message:   message,
		Timestamp: time.Now().UnixMilli(),
	})
}
