package resource

import (
	"context"
	"fmt"
	"net/url"

	"github.com/starford/coursesync/internal/canvas"
)

// RemoteOps lets a variant replace the default collection-based endpoints.
type RemoteOps interface {
	Search(ctx context.Context, remote Remote, course, name string) ([]canvas.Data, error)
	Fetch(ctx context.Context, remote Remote, course, id string) (canvas.Data, error)
	Save(ctx context.Context, remote Remote, course, id string, form url.Values) (canvas.Data, error)
}

// Search asks the remote API for objects of type v matching name. An empty
// name lists the whole collection.
func Search(ctx context.Context, remote Remote, course string, v Variant, name string) ([]canvas.Data, error) {
	if ops, ok := v.(RemoteOps); ok {
		return ops.Search(ctx, remote, course, name)
	}
	var params url.Values
	if name != "" {
		params = url.Values{"search_term": {name}}
	}
	items, err := remote.List(ctx, course, v.Descriptor().Collection, params)
	if err != nil {
		return nil, fmt.Errorf("resource: search %s: %w", v.Descriptor().Collection, err)
	}
	return items, nil
}

// Fetch retrieves one object by its exact remote identifier.
func Fetch(ctx context.Context, remote Remote, course string, v Variant, id string) (canvas.Data, error) {
	if ops, ok := v.(RemoteOps); ok {
		return ops.Fetch(ctx, remote, course, id)
	}
	endpoint := v.Descriptor().Collection + "/" + url.PathEscape(id)
	data, err := remote.Get(ctx, course, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("resource: fetch %s: %w", endpoint, err)
	}
	return data, nil
}

// Save creates the object when id is empty and updates it otherwise.
func Save(ctx context.Context, remote Remote, course string, v Variant, id string, form url.Values) (canvas.Data, error) {
	if ops, ok := v.(RemoteOps); ok {
		return ops.Save(ctx, remote, course, id, form)
	}
	collection := v.Descriptor().Collection
	var (
		data canvas.Data
		err  error
	)
	if id == "" {
		data, err = remote.Post(ctx, course, collection, form)
	} else {
		data, err = remote.Put(ctx, course, collection+"/"+url.PathEscape(id), form)
	}
	if err != nil {
		return nil, fmt.Errorf("resource: save %s: %w", collection, err)
	}
	return data, nil
}
