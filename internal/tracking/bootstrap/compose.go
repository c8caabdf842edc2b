// ============================================================================
// BOOTSTRAP (Compose Root)
// ============================================================================
//
// 📦 НАЗНАЧЕНИЕ:
// Точка сборки трекинг-сервиса. Здесь мы:
// 1. Создаем инфраструктуру (БД, RabbitMQ, JWT)
// 2. Собираем репозитории, кэш и use cases
// 3. Связываем WebSocket-адаптеры с use cases
// 4. Запускаем HTTP сервер и фоновые процессы (hub'ы, свипер)
//
// 💡 ПРИНЦИП: Dependency Injection Container
// Все зависимости создаются в одном месте и передаются в конструкторы,
// поэтому для тестов реализацию легко подменить (PostgreSQL → In-Memory).
//
// ============================================================================

package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/BBB-bus-buddy-buddy/App-Backend-sub000/internal/shared/auth"
	"github.com/BBB-bus-buddy-buddy/App-Backend-sub000/internal/shared/config"
	db_conn "github.com/BBB-bus-buddy-buddy/App-Backend-sub000/internal/shared/db"
	"github.com/BBB-bus-buddy-buddy/App-Backend-sub000/internal/shared/logger"
	"github.com/BBB-bus-buddy-buddy/App-Backend-sub000/internal/shared/mq"
	"github.com/BBB-bus-buddy-buddy/App-Backend-sub000/internal/tracking/adapters/in/in_ws"
	"github.com/BBB-bus-buddy-buddy/App-Backend-sub000/internal/tracking/adapters/out/out_amqp"
	"github.com/BBB-bus-buddy-buddy/App-Backend-sub000/internal/tracking/adapters/out/out_ws"
	"github.com/BBB-bus-buddy-buddy/App-Backend-sub000/internal/tracking/adapters/out/repo"
	"github.com/BBB-bus-buddy-buddy/App-Backend-sub000/internal/tracking/application/usecase"
	"github.com/BBB-bus-buddy-buddy/App-Backend-sub000/internal/tracking/cache"
	"github.com/BBB-bus-buddy-buddy/App-Backend-sub000/internal/tracking/detector"
	"github.com/BBB-bus-buddy-buddy/App-Backend-sub000/internal/tracking/sweeper"
)

// Run запускает трекинг-сервис со всеми его компонентами
func Run(ctx context.Context, cfg config.Config, log *logger.Logger) {
	log.Info(logger.Entry{Action: "tracking_service_starting", Message: "initializing tracking service"})

	// ========================================================================
	// СЛОЙ 1: ИНФРАСТРУКТУРА
	// ========================================================================

	dbPool, err := db_conn.NewPool(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal(logger.Entry{
			Action:  "db_connection_failed",
			Message: err.Error(),
			Error:   &logger.ErrObj{Msg: err.Error()},
		})
	}
	defer db_conn.Close(dbPool, log)

	if err := db_conn.Migrate(ctx, dbPool); err != nil {
		log.Fatal(logger.Entry{
			Action:  "db_migration_failed",
			Message: err.Error(),
			Error:   &logger.ErrObj{Msg: err.Error()},
		})
	}

	mqConn, err := mq.NewRabbitMQ(ctx, cfg.RabbitMQ, log)
	if err != nil {
		log.Fatal(logger.Entry{
			Action:  "rabbitmq_connection_failed",
			Message: err.Error(),
			Error:   &logger.ErrObj{Msg: err.Error()},
		})
	}
	defer mqConn.Close()

	if err := mq.SetupTopology(mqConn, log); err != nil {
		log.Fatal(logger.Entry{
			Action:  "rabbitmq_topology_setup_failed",
			Message: err.Error(),
			Error:   &logger.ErrObj{Msg: err.Error()},
		})
	}

	jwtService := auth.NewJWTService(cfg.JWT)

	// ========================================================================
	// СЛОЙ 2: РЕПОЗИТОРИИ, КЭШ, PUBLISHERS
	// ========================================================================

	operationRepo := repo.NewOperationPgRepository(dbPool, log)
	busRepo := repo.NewBusPgRepository(dbPool, log)
	routeRepo := repo.NewRoutePgRepository(dbPool, log)
	eventRepo := repo.NewTrackingEventPgRepository(dbPool, log)

	locations := cache.NewLocationCache()
	publisher := out_amqp.NewOperationEventPublisher(mqConn, log)

	// ========================================================================
	// СЛОЙ 3: USE CASES И ДВИЖОК ОБНАРУЖЕНИЯ
	// ========================================================================

	// Пассажирский handler создает свой hub сам, а broadcaster нужен
	// use case'ам раньше — hub привязывается после сборки handler'а
	broadcaster := out_ws.NewBroadcaster(nil, log)

	adjustUC := usecase.NewAdjustPassengersService(operationRepo, busRepo, broadcaster, log)
	startUC := usecase.NewStartOperationService(operationRepo, busRepo, routeRepo, publisher, cfg.Tracking, log)
	endUC := usecase.NewEndOperationService(operationRepo, busRepo, routeRepo, publisher, locations, cfg.Tracking, log)
	updateStatusUC := usecase.NewUpdateStatusService(operationRepo, busRepo, publisher, locations, log)
	ingestUC := usecase.NewIngestLocationService(operationRepo, busRepo, routeRepo, eventRepo, locations, broadcaster, publisher, log)
	queryUC := usecase.NewOperationQueryService(operationRepo, log)

	engine := detector.NewEngine(locations, adjustUC, operationRepo, eventRepo, publisher, cfg.Tracking, log)

	// ========================================================================
	// СЛОЙ 4: WEBSOCKET АДАПТЕРЫ
	// ========================================================================

	passengerWS := in_ws.NewPassengerWSHandler(jwtService, engine, queryUC, locations, broadcaster, log)
	broadcaster.AttachHub(passengerWS.GetHub())
	driverWS := in_ws.NewDriverWSHandler(jwtService, ingestUC, startUC, endUC, queryUC, broadcaster, log)

	go passengerWS.GetHub().Run(ctx)
	go driverWS.GetHub().Run(ctx)

	// ========================================================================
	// СЛОЙ 5: ФОНОВЫЕ ЧИСТКИ
	// ========================================================================

	sweep := sweeper.NewSweeper(locations, engine, operationRepo, updateStatusUC, cfg.Tracking, log)
	go sweep.Run(ctx)

	// ========================================================================
	// СЛОЙ 6: HTTP СЕРВЕР
	// ========================================================================

	mux := http.NewServeMux()
	mux.HandleFunc("/ws/driver", driverWS.ServeWS)
	mux.HandleFunc("/ws/passenger", passengerWS.ServeWS)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	addr := fmt.Sprintf(":%d", cfg.WebSocket.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info(logger.Entry{
			Action:  "http_server_starting",
			Message: fmt.Sprintf("listening on %s", addr),
		})
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal(logger.Entry{
				Action:  "http_server_failed",
				Message: err.Error(),
				Error:   &logger.ErrObj{Msg: err.Error()},
			})
		}
	}()

	<-ctx.Done()

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error(logger.Entry{
			Action:  "http_server_shutdown_failed",
			Message: err.Error(),
			Error:   &logger.ErrObj{Msg: err.Error()},
		})
	}

	log.Info(logger.Entry{Action: "tracking_service_stopped", Message: "tracking service stopped"})
}
