// Package app composes the dojo backend into a running application.
//
// # Architecture Role
//
// The app package sits above the business services and is responsible for
// wiring them together with storage, the notification hub, and the HTTP API.
// It is NOT a business logic layer - business logic belongs in
// internal/app/services/.
//
// # Package Structure
//
//	internal/app/
//	├── application.go      # Main application struct, wiring, and lifecycle
//	├── domain/             # Domain models (pure data structures)
//	│   ├── quest/          # Quests and quest instances
//	│   ├── aihint/         # Hint jobs and hint payloads
//	│   ├── reward/         # Reward transactions
//	│   └── user/           # User accounts
//	├── storage/            # Storage interfaces and implementations
//	│   ├── interfaces.go   # Store interfaces (UserStore, InstanceStore, ...)
//	│   ├── memory/         # In-memory implementation for testing
//	│   └── postgres/       # PostgreSQL implementation for production
//	├── services/           # Business logic (catalog, quests, aihint, rewards, users)
//	├── httpapi/            # HTTP API handlers and routing
//	└── system/             # Background service lifecycle management
//
// # Responsibilities
//
// The app package is responsible for:
//
//   - Composing services from internal/app/services/ with their dependencies
//   - Defining storage interfaces that services depend on
//   - Providing domain models shared across services
//   - Exposing HTTP API endpoints for external access
//   - Starting and stopping background workers (hint queue, reward reconciler)
//
// # Example: Adding a New Domain
//
// When adding a new domain (e.g. "leaderboards"):
//
//  1. Create domain models in internal/app/domain/leaderboard/
//  2. Add a storage interface to internal/app/storage/interfaces.go
//  3. Implement storage in internal/app/storage/postgres/ and memory/
//  4. Create the service in internal/app/services/leaderboards/service.go
//  5. Wire the service in internal/app/application.go
//  6. Add HTTP handlers in internal/app/httpapi/handler.go
package app
