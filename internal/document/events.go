package document

import (
	"context"
	"fmt"

	"github.com/dshills/langcore/internal/event"
)

// OnDocument subscribes fn to a document lifecycle event
func OnDocument(d *event.Dispatcher, kind event.Kind, fn func(ctx context.Context, doc *Document) error) {
	d.Subscribe(kind, func(ctx context.Context, payload any) error {
		doc, ok := payload.(*Document)
		if !ok {
			return fmt.Errorf("%s: unexpected payload %T", kind, payload)
		}
		return fn(ctx, doc)
	})
}

// OnProject subscribes fn to a project lifecycle event
func OnProject(d *event.Dispatcher, kind event.Kind, fn func(ctx context.Context, project *Project) error) {
	d.Subscribe(kind, func(ctx context.Context, payload any) error {
		project, ok := payload.(*Project)
		if !ok {
			return fmt.Errorf("%s: unexpected payload %T", kind, payload)
		}
		return fn(ctx, project)
	})
}
