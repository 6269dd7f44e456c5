package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

var orderKindByName = func() map[string]OrderKind {
	m := make(map[string]OrderKind, len(orderKindNames))
	for k, n := range orderKindNames {
		m[n] = k
	}
	return m
}()

// MarshalOrder encodes an order as a flat object tagged with "type".
func MarshalOrder(o Order) ([]byte, error) {
	body, err := json.Marshal(o)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	buf.WriteString(`{"type":`)
	name, _ := json.Marshal(o.Kind().String())
	buf.Write(name)
	body = bytes.TrimSpace(body)
	if len(body) > 2 {
		buf.WriteByte(',')
		buf.Write(body[1 : len(body)-1])
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func UnmarshalOrder(b []byte) (Order, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(b, &head); err != nil {
		return nil, err
	}
	kind, ok := orderKindByName[head.Type]
	if !ok {
		return nil, fmt.Errorf("unknown order type %q", head.Type)
	}
	o := NewOrder(kind)
	if err := json.Unmarshal(b, o); err != nil {
		return nil, fmt.Errorf("order %s: %w", head.Type, err)
	}
	return o, nil
}

func (l OrderList) MarshalJSON() ([]byte, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, o := range l {
		if i > 0 {
			buf.WriteByte(',')
		}
		b, err := MarshalOrder(o)
		if err != nil {
			return nil, err
		}
		buf.Write(b)
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

func (l *OrderList) UnmarshalJSON(b []byte) error {
	var raws []json.RawMessage
	if err := json.Unmarshal(b, &raws); err != nil {
		return err
	}
	out := make(OrderList, 0, len(raws))
	for _, raw := range raws {
		o, err := UnmarshalOrder(raw)
		if err != nil {
			return err
		}
		out = append(out, o)
	}
	*l = out
	return nil
}
