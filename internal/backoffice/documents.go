package backoffice

import "context"

// GetDocument fetches a trade document by id from the given endpoint,
// e.g. "DocWholeSale/Get". Returns nil when the document is not found.
func (c *Client) GetDocument(ctx context.Context, token, endpoint string, id int64) (*Document, error) {
	var docs []Document
	if err := c.call(ctx, token, endpoint, map[string]any{"ids": []int64{id}}, &docs); err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, nil
	}
	return &docs[0], nil
}

// GetOperations fetches the item lines of a trade document from the
// given endpoint, e.g. "WholeSaleOperation/Get".
func (c *Client) GetOperations(ctx context.Context, token, endpoint string, documentID int64) ([]Operation, error) {
	var ops []Operation
	err := c.call(ctx, token, endpoint, map[string]any{"document_ids": []int64{documentID}}, &ops)
	if err != nil {
		return nil, err
	}
	return ops, nil
}

// GetPayment fetches a payment document by id. Returns nil when not found.
func (c *Client) GetPayment(ctx context.Context, token string, id int64) (*Payment, error) {
	var docs []Payment
	if err := c.call(ctx, token, "DocPayment/Get", map[string]any{"ids": []int64{id}}, &docs); err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, nil
	}
	return &docs[0], nil
}

// GetWarehouseName resolves a stock id to its display name. Returns ""
// when the warehouse cannot be resolved.
func (c *Client) GetWarehouseName(ctx context.Context, token string, stockID int64) (string, error) {
	var stocks []Ref
	if err := c.call(ctx, token, "Stock/Get", map[string]any{"id": stockID}, &stocks); err != nil {
		return "", err
	}
	if len(stocks) == 0 {
		return "", nil
	}
	return stocks[0].Name, nil
}
