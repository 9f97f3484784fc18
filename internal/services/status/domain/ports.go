package domain

import "context"

// ServicePort is consumed by handlers
type ServicePort interface {
	Health(ctx context.Context) (Health, error)
	Logs(ctx context.Context, q LogQuery) ([]LogEntry, error)
	Categories() []CategoryView
	Run(ctx context.Context, in RunRequest) (PassReport, error)
}
