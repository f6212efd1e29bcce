package browser

import (
	"encoding/json"
	"fmt"
)

// rowChangedBinding is the page-side function the mutation observer calls with the
// topmost data row's markup. Each call arrives as a runtime.EventBindingCalled.
const rowChangedBinding = "__otpRowChanged"

func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

// observerScript attaches (or re-attaches) a MutationObserver to the table.
// It evaluates to false when the table is not on the page.
func observerScript(tableSelector string) string {
	return fmt.Sprintf(`(() => {
	const table = document.querySelector(%s);
	if (!table) return false;
	if (window.__otpRowObserver) window.__otpRowObserver.disconnect();
	const observer = new MutationObserver((mutations) => {
		if (!mutations.some((m) => m.type === 'childList')) return;
		const rows = table.querySelectorAll('tr');
		if (rows.length > 1) window.%s(rows[1].innerHTML);
	});
	observer.observe(table, { childList: true, subtree: true });
	window.__otpRowObserver = observer;
	return true;
})()`, jsString(tableSelector), rowChangedBinding)
}

// topRowScript evaluates to the cell texts of the first row after the header.
func topRowScript(tableSelector string) string {
	return fmt.Sprintf(`(() => {
	const table = document.querySelector(%s);
	if (!table) return [];
	const rows = table.querySelectorAll('tr');
	if (rows.length <= 1) return [];
	return Array.from(rows[1].querySelectorAll('td')).map((td) => td.innerText || td.textContent || '');
})()`, jsString(tableSelector))
}

// loggedInMarkersScript is true when any logout link, user menu or portal content is present.
const loggedInMarkersScript = `(() => {
	const logout = document.querySelector('a[href*="logout"], button[onclick*="logout"]');
	const userMenu = document.querySelector('.user-menu, .profile-menu, .dropdown-menu');
	const portal = document.querySelector('.portal, .dashboard, table');
	return !!(logout || userMenu || portal);
})()`

// checkRememberScript ticks the "remember me" box if the form has one.
func checkRememberScript(selector string) string {
	return fmt.Sprintf(`(() => {
	const box = document.querySelector(%s);
	if (box && !box.checked) box.click();
	return !!box;
})()`, jsString(selector))
}
