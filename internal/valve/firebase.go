package valve

import (
	"context"

	"firebase.google.com/go/v4/db"
)

// firebaseDatabase adapts the Realtime Database client to the Database
// interface.
type firebaseDatabase struct {
	client *db.Client
}

func (f *firebaseDatabase) Get(ctx context.Context, path string, v interface{}) error {
	return f.client.NewRef(path).Get(ctx, v)
}

func (f *firebaseDatabase) Update(ctx context.Context, path string, v map[string]interface{}) error {
	return f.client.NewRef(path).Update(ctx, v)
}
