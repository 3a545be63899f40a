package session

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// jsFirst resolves an XPath to its first node, or null.
const jsFirst = `const first = (xp) => document.evaluate(xp, document, null, XPathResult.FIRST_ORDERED_NODE_TYPE, null).singleNodeValue;`

func jsonEncode(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		return `""`
	}
	return string(b)
}

// elementScript wraps body in an IIFE that binds el to the first node matching
// locator and returns false when there is none.
func elementScript(locator, body string, args ...string) string {
	params, values := "xp", jsonEncode(locator)
	for i, a := range args {
		params += fmt.Sprintf(", a%d", i)
		values += ", " + jsonEncode(a)
	}
	return fmt.Sprintf(`(function(%s) {
	%s
	const el = first(xp);
	if (!el) return false;
	%s
})(%s)`, params, jsFirst, body, values)
}

func scriptClick(locator string) string {
	return elementScript(locator, `el.click();
	return true;`)
}

func scriptValue(locator string) string {
	return fmt.Sprintf(`(function(xp) {
	%s
	const el = first(xp);
	if (!el) return null;
	return el.value === undefined || el.value === null ? "" : String(el.value);
})(%s)`, jsFirst, jsonEncode(locator))
}

// setValueJS writes through the prototype setter so framework-tracked inputs see
// the change.
const setValueJS = `const setter = (el, v) => {
		const desc = Object.getOwnPropertyDescriptor(Object.getPrototypeOf(el), 'value');
		if (desc && desc.set) { desc.set.call(el, v); } else { el.value = v; }
	};
	const fire = (el) => {
		el.dispatchEvent(new Event('input', { bubbles: true }));
		el.dispatchEvent(new Event('change', { bubbles: true }));
	};`

func scriptResetValue(locator string) string {
	return elementScript(locator, setValueJS+`
	setter(el, "");
	fire(el);
	return true;`)
}

func scriptInjectValue(locator, value string) string {
	return elementScript(locator, setValueJS+`
	el.removeAttribute('readonly');
	el.focus();
	setter(el, a0);
	fire(el);
	el.blur();
	return true;`, value)
}

func scriptDispatchCommit(locator string) string {
	return elementScript(locator, setValueJS+`
	fire(el);
	return true;`)
}

// scriptVisibleIndexes returns the 1-based positions of the rendered nodes in the
// locator's snapshot.
func scriptVisibleIndexes(locator string) string {
	return fmt.Sprintf(`(function(xp) {
	const snap = document.evaluate(xp, document, null, XPathResult.ORDERED_NODE_SNAPSHOT_TYPE, null);
	const out = [];
	for (let i = 0; i < snap.snapshotLength; i++) {
		const el = snap.snapshotItem(i);
		if (!(el instanceof Element)) continue;
		const style = window.getComputedStyle(el);
		if (style.display === 'none' || style.visibility === 'hidden') continue;
		if (el.getClientRects().length === 0) continue;
		out.push(i + 1);
	}
	return out;
})(%s)`, jsonEncode(locator))
}

// indexedLocator addresses the n-th node (1-based) of locator's result set.
func indexedLocator(locator string, n int) string {
	return fmt.Sprintf("(%s)[%d]", locator, n)
}
