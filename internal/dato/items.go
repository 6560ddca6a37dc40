package dato

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"net/http"
	"net/url"
)

// reservedItemKeys are never sent as record attributes
var reservedItemKeys = map[string]bool{
	"id":        true,
	"type":      true,
	"meta":      true,
	"item_type": true,
	"creator":   true,
}

func itemAttributes(fields map[string]any) map[string]any {
	attrs := make(map[string]any, len(fields))
	for k, v := range fields {
		if !reservedItemKeys[k] {
			attrs[k] = v
		}
	}
	return attrs
}

// FindItem returns one record
func (c *Client) FindItem(ctx context.Context, id string) (map[string]any, error) {
	var doc singleDocument
	if err := c.do(ctx, "GET", "/items/"+url.PathEscape(id), nil, nil, &doc); err != nil {
		c.logError("find_item", err)
		return nil, err
	}
	c.logAccess("record", "get", map[string]any{"record_id": id})
	return flatten(doc.Data), nil
}

// ListItems returns a single page of records
func (c *Client) ListItems(ctx context.Context, q ItemQuery) ([]map[string]any, error) {
	if q.Limit > MaxItemsPerPage {
		q.Limit = MaxItemsPerPage
	}
	items, _, err := c.listItemsPage(ctx, q)
	if err != nil {
		c.logError("list_items", err)
		return nil, err
	}
	return items, nil
}

// ItemsPaged iterates over every record matching q, fetching pages lazily
func (c *Client) ItemsPaged(ctx context.Context, q ItemQuery) iter.Seq2[map[string]any, error] {
	return paged(ctx, MaxItemsPerPage, func(ctx context.Context, limit, offset int) ([]map[string]any, int, error) {
		page := q
		page.Limit = limit
		page.Offset = offset
		return c.listItemsPage(ctx, page)
	})
}

func (c *Client) listItemsPage(ctx context.Context, q ItemQuery) ([]map[string]any, int, error) {
	var doc listDocument
	if err := c.do(ctx, "GET", "/items", q.values(), nil, &doc); err != nil {
		return nil, 0, err
	}
	return flattenAll(doc.Data), doc.Meta.TotalCount, nil
}

// CreateItem creates a record of the given model
func (c *Client) CreateItem(ctx context.Context, itemTypeID string, fields map[string]any) (map[string]any, error) {
	body := document("item", "", itemAttributes(fields), map[string]any{
		"item_type": Ref{Type: "item_type", ID: itemTypeID},
	})

	var doc singleDocument
	if err := c.do(ctx, "POST", "/items", nil, body, &doc); err != nil {
		c.logError("create_item", err)
		return nil, err
	}
	return flatten(doc.Data), nil
}

// UpdateItem changes the given fields of a record, leaving the others untouched
func (c *Client) UpdateItem(ctx context.Context, id string, fields map[string]any) (map[string]any, error) {
	body := document("item", id, itemAttributes(fields), nil)

	var doc singleDocument
	if err := c.do(ctx, "PUT", "/items/"+url.PathEscape(id), nil, body, &doc); err != nil {
		c.logError("update_item", err)
		return nil, err
	}
	return flatten(doc.Data), nil
}

// DeleteItem destroys a record and returns its last state
func (c *Client) DeleteItem(ctx context.Context, id string) (map[string]any, error) {
	return c.itemAction(ctx, "DELETE", "/items/"+url.PathEscape(id), "delete_item")
}

// PublishItem publishes the current version of a record
func (c *Client) PublishItem(ctx context.Context, id string) (map[string]any, error) {
	return c.itemAction(ctx, "PUT", "/items/"+url.PathEscape(id)+"/publish", "publish_item")
}

// UnpublishItem moves a record back to draft
func (c *Client) UnpublishItem(ctx context.Context, id string) (map[string]any, error) {
	return c.itemAction(ctx, "PUT", "/items/"+url.PathEscape(id)+"/unpublish", "unpublish_item")
}

func (c *Client) itemAction(ctx context.Context, method, path, operation string) (map[string]any, error) {
	status, data, err := c.send(ctx, method, path, nil, nil)
	if err != nil {
		c.logError(operation, err)
		return nil, err
	}

	var doc singleDocument
	if len(data) > 0 {
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("%s %s: failed to decode response: %w", method, path, err)
		}
	}
	// destroy may answer 202 with an async job instead of the record
	if status == http.StatusAccepted && doc.Data.Type == "job" {
		return c.waitForJob(ctx, doc.Data.ID)
	}
	return flatten(doc.Data), nil
}
