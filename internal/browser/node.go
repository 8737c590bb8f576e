package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/chromedp/cdproto"
	"github.com/chromedp/cdproto/cdp"
	cdpdom "github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/runtime"

	"github.com/go-scripts/wikicrawl/internal/dom"
)

// staleMarker is thrown by page-side helpers when an element was detached.
const staleMarker = "stale element reference"

// Protocol messages that mean a node id no longer refers to a live element.
var staleMessages = []string{
	"could not find node with given id",
	"no node with given id",
	"node with given id does not belong to the document",
	"cannot find context with specified id",
	"no node found for given backend id",
	staleMarker,
}

const textJS = `function() {
	if (!this.isConnected) throw new Error(%q);
	return this.innerText || this.textContent || "";
}`

const attrJS = `function() {
	const name = %s;
	if (!this.isConnected) throw new Error(%q);
	if (!this.hasAttribute(name)) return "";
	const v = this[name];
	return typeof v === "string" ? v : this.getAttribute(name);
}`

const clickJS = `function() {
	if (!this.isConnected) throw new Error(%q);
	this.scrollIntoView({block: "center"});
	this.click();
}`

const parentJS = `function() {
	if (!this.isConnected) throw new Error(%q);
	return this.parentElement;
}`

type node struct {
	s   *Session
	id  cdp.NodeID
	tag string
}

func (n *node) wrap(ids []cdp.NodeID) []dom.Node {
	out := make([]dom.Node, 0, len(ids))
	for _, id := range ids {
		out = append(out, &node{s: n.s, id: id})
	}
	return out
}

func (n *node) Tag(ctx context.Context) (string, error) {
	if n.tag != "" {
		return n.tag, nil
	}
	desc, err := cdpdom.DescribeNode().WithNodeID(n.id).Do(n.s.exec(ctx))
	if err != nil {
		return "", mapError(err)
	}
	n.tag = strings.ToLower(desc.NodeName)
	return n.tag, nil
}

func (n *node) Text(ctx context.Context) (string, error) {
	var text string
	if err := n.call(ctx, fmt.Sprintf(textJS, staleMarker), &text); err != nil {
		return "", err
	}
	return text, nil
}

func (n *node) Attr(ctx context.Context, name string) (string, error) {
	nameJSON, err := json.Marshal(name)
	if err != nil {
		return "", err
	}
	var value string
	if err := n.call(ctx, fmt.Sprintf(attrJS, nameJSON, staleMarker), &value); err != nil {
		return "", err
	}
	return value, nil
}

func (n *node) QueryAll(ctx context.Context, selector string) ([]dom.Node, error) {
	ids, err := cdpdom.QuerySelectorAll(n.id, selector).Do(n.s.exec(ctx))
	if err != nil {
		return nil, fmt.Errorf("querying %q: %w", selector, mapError(err))
	}
	return n.wrap(ids), nil
}

// NextSiblings lists the parent's element children and keeps those after n.
func (n *node) NextSiblings(ctx context.Context) ([]dom.Node, error) {
	exec := n.s.exec(ctx)

	obj, err := cdpdom.ResolveNode().WithNodeID(n.id).Do(exec)
	if err != nil {
		return nil, mapError(err)
	}
	defer func() { _ = runtime.ReleaseObject(obj.ObjectID).Do(exec) }()

	parent, exc, err := runtime.CallFunctionOn(fmt.Sprintf(parentJS, staleMarker)).
		WithObjectID(obj.ObjectID).
		Do(exec)
	if err != nil {
		return nil, mapError(err)
	}
	if exc != nil {
		return nil, exceptionError(exc)
	}
	if parent == nil || parent.ObjectID == "" {
		return nil, nil
	}
	defer func() { _ = runtime.ReleaseObject(parent.ObjectID).Do(exec) }()

	parentID, err := cdpdom.RequestNode(parent.ObjectID).Do(exec)
	if err != nil {
		return nil, mapError(err)
	}
	children, err := cdpdom.QuerySelectorAll(parentID, ":scope > *").Do(exec)
	if err != nil {
		return nil, mapError(err)
	}

	idx := slices.Index(children, n.id)
	if idx < 0 {
		return nil, fmt.Errorf("node %d missing from its parent: %w", n.id, dom.ErrStale)
	}
	return n.wrap(children[idx+1:]), nil
}

func (n *node) Click(ctx context.Context) error {
	return n.call(ctx, fmt.Sprintf(clickJS, staleMarker), nil)
}

// call runs fn with this bound to the element and decodes its return value.
func (n *node) call(ctx context.Context, fn string, out any) error {
	exec := n.s.exec(ctx)

	obj, err := cdpdom.ResolveNode().WithNodeID(n.id).Do(exec)
	if err != nil {
		return mapError(err)
	}
	defer func() { _ = runtime.ReleaseObject(obj.ObjectID).Do(exec) }()

	res, exc, err := runtime.CallFunctionOn(fn).
		WithObjectID(obj.ObjectID).
		WithReturnByValue(true).
		Do(exec)
	if err != nil {
		return mapError(err)
	}
	if exc != nil {
		return exceptionError(exc)
	}
	if out == nil || res == nil || len(res.Value) == 0 {
		return nil
	}
	if err := json.Unmarshal(res.Value, out); err != nil {
		return fmt.Errorf("decoding script result: %w", err)
	}
	return nil
}

// mapError turns protocol errors about vanished nodes into dom.ErrStale.
func mapError(err error) error {
	var cerr *cdproto.Error
	if errors.As(err, &cerr) && isStaleMessage(cerr.Message) {
		return fmt.Errorf("%w: %s", dom.ErrStale, cerr.Message)
	}
	return err
}

func exceptionError(exc *runtime.ExceptionDetails) error {
	msg := exc.Text
	if exc.Exception != nil && exc.Exception.Description != "" {
		msg = exc.Exception.Description
	}
	if isStaleMessage(msg) {
		return fmt.Errorf("%w: %s", dom.ErrStale, msg)
	}
	return fmt.Errorf("script exception: %s", msg)
}

func isStaleMessage(msg string) bool {
	msg = strings.ToLower(msg)
	for _, m := range staleMessages {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}
