package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"neembleeat/internal/cart"
	"neembleeat/internal/checkout"
	"neembleeat/internal/models"
	"neembleeat/internal/notify"
	"neembleeat/internal/session"
)

const (
	viewSession  = "session"
	viewMenu     = "menu"
	viewCart     = "cart"
	viewCheckout = "checkout"
	viewOptions  = "options"
	viewLogin    = "login"
)

const requestTimeout = 15 * time.Second

// MenuSource loads the menu the diner orders from
type MenuSource interface {
	Menu(ctx context.Context, menuID string) (*models.Menu, error)
	Items(ctx context.Context, categoryID string) ([]models.MenuItem, error)
}

// Deps wires the terminal client to the diner services
type Deps struct {
	View      *session.View
	Snapshots <-chan *session.Snapshot
	Toasts    <-chan notify.Toast
	Redirects <-chan string
	Carts     *cart.Manager
	Checkout  *checkout.Service
	Menus     MenuSource

	Slug   string
	Table  int
	MenuID string
}

// Model is the diner's terminal view of one table
type Model struct {
	deps Deps

	orders     table.Model
	cartTable  table.Model
	menuList   list.Model
	optionList list.Model
	nameInput  textinput.Model
	spinner    spinner.Model

	// choosing is the dish whose options are being picked
	choosing    *models.MenuItem
	snap        *session.Snapshot
	toast       *notify.Toast
	billPending bool
	submitting  bool
	loading     bool
	currentView string
	error       string
}

// menuItem is a dish in the menu list
type menuItem struct {
	item models.MenuItem
}

func (i menuItem) FilterValue() string { return i.item.Name }
func (i menuItem) Title() string       { return i.item.Name }

func (i menuItem) Description() string {
	desc := i.item.Price.StringFixed(2)
	if !i.item.IsAvailable {
		desc += " · unavailable"
	}
	if allergens := i.item.DeclaredAllergens(); len(allergens) > 0 {
		names := make([]string, len(allergens))
		for j, a := range allergens {
			names[j] = strings.ReplaceAll(string(a), "_", " ")
		}
		desc += " · contains " + strings.Join(names, ", ")
	}
	if i.item.Description != "" {
		desc += " · " + i.item.Description
	}
	return desc
}

// optionItem is one option of a customisation rule
type optionItem struct {
	rule     models.CustomizationRule
	option   models.SelectedCustomization
	selected bool
}

func (i optionItem) FilterValue() string { return i.option.Name }

func (i optionItem) Title() string {
	if i.selected {
		return "[x] " + i.option.Name
	}
	return "[ ] " + i.option.Name
}

func (i optionItem) Description() string {
	desc := i.rule.Name + " · " + ruleHint(i.rule)
	if !i.option.Price.IsZero() {
		desc += " · +" + i.option.Price.StringFixed(2)
	}
	return desc
}

func ruleHint(r models.CustomizationRule) string {
	switch {
	case r.Max > 0 && r.Min == r.Max:
		return fmt.Sprintf("pick %d", r.Min)
	case r.Max > 0 && r.Min > 0:
		return fmt.Sprintf("pick %d to %d", r.Min, r.Max)
	case r.Max > 0:
		return fmt.Sprintf("up to %d", r.Max)
	case r.Min > 0:
		return fmt.Sprintf("pick at least %d", r.Min)
	}
	return "optional"
}

// Custom message types for the tea.Model
type snapshotMsg struct {
	snap *session.Snapshot
	// closed is set when the watcher stopped
	closed bool
}

type loadedMsg struct {
	snap *session.Snapshot
}

type toastMsg notify.Toast

type redirectMsg string

type menuMsg struct {
	items []models.MenuItem
}

type billMsg struct {
	snap *session.Snapshot
	err  error
}

type checkoutMsg struct {
	orders []models.Order
	err    error
}

type errorMsg struct {
	err string
}

// New builds the model for deps
func New(deps Deps) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	orders := table.New(
		table.WithColumns([]table.Column{
			{Title: "Dish", Width: 24},
			{Title: "Qty", Width: 5},
			{Title: "Total", Width: 10},
			{Title: "Status", Width: 12},
		}),
		table.WithFocused(true),
		table.WithHeight(8),
	)

	cartTable := table.New(
		table.WithColumns([]table.Column{
			{Title: "Dish", Width: 24},
			{Title: "Qty", Width: 5},
			{Title: "Price", Width: 10},
			{Title: "Line", Width: 10},
		}),
		table.WithFocused(true),
		table.WithHeight(8),
	)

	menuList := list.New([]list.Item{}, list.NewDefaultDelegate(), 60, 16)
	menuList.Title = "Menu"

	optionList := list.New([]list.Item{}, list.NewDefaultDelegate(), 60, 16)
	optionList.SetFilteringEnabled(false)

	ti := textinput.New()
	ti.Placeholder = "Name for the order (optional)"
	ti.CharLimit = 60
	ti.Width = 30

	return Model{
		deps:        deps,
		orders:      orders,
		cartTable:   cartTable,
		menuList:    menuList,
		optionList:  optionList,
		nameInput:   ti,
		spinner:     s,
		loading:     true,
		currentView: viewSession,
	}
}

// Init starts the spinner, the initial load and the channel listeners
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		loadSession(m.deps),
		waitForSnapshot(m.deps.Snapshots),
		waitForToast(m.deps.Toasts),
		waitForRedirect(m.deps.Redirects),
	)
}

// Update handles UI updates
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case loadedMsg:
		m.setSnapshot(msg.snap)
		return m, nil
	case snapshotMsg:
		if msg.closed {
			return m, nil
		}
		m.setSnapshot(msg.snap)
		return m, waitForSnapshot(m.deps.Snapshots)
	case toastMsg:
		t := notify.Toast(msg)
		m.toast = &t
		return m, waitForToast(m.deps.Toasts)
	case redirectMsg:
		m.currentView = viewLogin
		m.error = fmt.Sprintf("Your sign-in expired. Sign in again at %s.", string(msg))
		return m, waitForRedirect(m.deps.Redirects)
	case menuMsg:
		m.loading = false
		items := make([]list.Item, 0, len(msg.items))
		for _, it := range msg.items {
			items = append(items, menuItem{item: it})
		}
		m.menuList.SetItems(items)
		return m, nil
	case billMsg:
		m.billPending = false
		if msg.snap != nil {
			m.setSnapshot(msg.snap)
		}
		if msg.err != nil {
			m.error = msg.err.Error()
		}
		return m, nil
	case checkoutMsg:
		m.submitting = false
		if msg.err != nil {
			m.error = msg.err.Error()
			return m, nil
		}
		m.error = ""
		m.nameInput.Blur()
		m.currentView = viewSession
		return m, refreshSession(m.deps)
	case errorMsg:
		m.loading = false
		m.error = msg.err
		return m, nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m.updateCurrent(msg)
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if key == "ctrl+c" || (key == "q" && m.currentView != viewCheckout) {
		return m, tea.Quit
	}
	if key == "esc" && m.currentView == viewOptions {
		m.choosing = nil
		m.currentView = viewMenu
		return m, nil
	}
	if key == "esc" {
		m.nameInput.Blur()
		m.currentView = viewSession
		m.error = ""
		return m, nil
	}

	switch m.currentView {
	case viewSession:
		switch key {
		case "b":
			if !m.CanRequestBill() {
				return m, nil
			}
			m.billPending = true
			m.error = ""
			return m, requestBill(m.deps)
		case "r":
			return m, refreshSession(m.deps)
		case "m":
			if !m.started() {
				return m, nil
			}
			m.currentView = viewMenu
			m.loading = true
			return m, fetchMenu(m.deps)
		case "c":
			if !m.started() {
				return m, nil
			}
			m.currentView = viewCart
			m.refreshCart()
			return m, nil
		}
	case viewMenu:
		if key == "enter" && m.menuList.FilterState() != list.Filtering {
			if selected, ok := m.menuList.SelectedItem().(menuItem); ok {
				m.chooseDish(selected.item)
			}
			return m, nil
		}
	case viewOptions:
		switch key {
		case " ":
			m.toggleOption()
			return m, nil
		case "enter":
			if m.addToCart(*m.choosing, m.chosenOptions()) {
				m.choosing = nil
				m.currentView = viewMenu
			}
			return m, nil
		}
	case viewCart:
		switch key {
		case "+", "=":
			m.lineOp((*cart.Cart).Increment)
			return m, nil
		case "-":
			m.lineOp((*cart.Cart).Decrement)
			return m, nil
		case "x":
			m.lineOp((*cart.Cart).Delete)
			return m, nil
		case "o":
			if cr := m.openCart(); cr == nil || cr.Len() == 0 {
				m.error = "Your cart is empty"
				return m, nil
			}
			m.currentView = viewCheckout
			m.nameInput.SetValue(m.deps.Carts.CustomerName(m.deps.Slug))
			m.nameInput.Focus()
			return m, textinput.Blink
		}
	case viewCheckout:
		if key == "enter" {
			if m.submitting {
				return m, nil
			}
			cr := m.openCart()
			if cr == nil {
				return m, nil
			}
			m.submitting = true
			m.error = ""
			return m, submitOrder(m.deps, cr, m.snap.Session, strings.TrimSpace(m.nameInput.Value()))
		}
	}

	return m.updateCurrent(msg)
}

func (m Model) updateCurrent(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.currentView {
	case viewSession:
		m.orders, cmd = m.orders.Update(msg)
	case viewMenu:
		m.menuList, cmd = m.menuList.Update(msg)
	case viewOptions:
		m.optionList, cmd = m.optionList.Update(msg)
	case viewCart:
		m.cartTable, cmd = m.cartTable.Update(msg)
	case viewCheckout:
		m.nameInput, cmd = m.nameInput.Update(msg)
	}
	return m, cmd
}

// CanRequestBill reports whether the bill control is enabled
func (m Model) CanRequestBill() bool {
	return m.snap != nil && m.snap.CanRequestBill && !m.snap.BillRequested && !m.billPending
}

func (m Model) started() bool {
	return m.snap != nil && m.snap.Started
}

func (m *Model) setSnapshot(snap *session.Snapshot) {
	if snap == nil {
		return
	}
	m.loading = false
	m.snap = snap

	rows := make([]table.Row, 0, len(snap.Orders))
	for _, o := range snap.Orders {
		name := o.ItemName
		if name == "" {
			name = o.ItemID
		}
		total := o.Total.StringFixed(2)
		if o.StruckThrough {
			name = struckStyle.Render(name)
			total = struckStyle.Render(total)
		}
		rows = append(rows, table.Row{name, fmt.Sprint(o.Quantity), total, o.Badge.Label})
	}
	m.orders.SetRows(rows)

	if !snap.Started && m.currentView != viewLogin {
		m.currentView = viewSession
	}
}

func (m Model) openCart() *cart.Cart {
	if !m.started() {
		return nil
	}
	return m.deps.Carts.Open(cart.Key{
		RestaurantSlug: m.deps.Slug,
		SessionID:      m.snap.SessionID(),
		MenuID:         m.deps.MenuID,
	})
}

func (m *Model) refreshCart() {
	cr := m.openCart()
	if cr == nil {
		m.cartTable.SetRows(nil)
		return
	}
	items := cr.Items()
	rows := make([]table.Row, 0, len(items))
	for _, it := range items {
		rows = append(rows, table.Row{
			it.Name,
			fmt.Sprint(it.Quantity),
			it.Price.StringFixed(2),
			it.LineTotal().StringFixed(2),
		})
	}
	m.cartTable.SetRows(rows)
}

func (m *Model) lineOp(op func(cr *cart.Cart, index int) bool) {
	cr := m.openCart()
	if cr == nil {
		return
	}
	if op(cr, m.cartTable.Cursor()) {
		m.error = ""
	}
	m.refreshCart()
	if n := cr.Len(); m.cartTable.Cursor() >= n && n > 0 {
		m.cartTable.MoveUp(m.cartTable.Cursor() - (n - 1))
	}
}

// chooseDish adds a dish without options straight away and opens the
// option picker for the rest.
func (m *Model) chooseDish(item models.MenuItem) {
	if !item.IsAvailable {
		m.error = item.Name + " is not available right now"
		return
	}
	if len(item.Customizations) == 0 {
		m.addToCart(item, nil)
		return
	}

	var options []list.Item
	for _, rule := range item.Customizations {
		for _, opt := range rule.Options {
			options = append(options, optionItem{rule: rule, option: opt})
		}
	}
	m.optionList.Title = item.Name
	m.optionList.SetItems(options)
	m.optionList.Select(0)
	m.choosing = &item
	m.error = ""
	m.currentView = viewOptions
}

func (m *Model) toggleOption() {
	i := m.optionList.Index()
	opt, ok := m.optionList.SelectedItem().(optionItem)
	if !ok {
		return
	}
	opt.selected = !opt.selected
	m.optionList.SetItem(i, opt)
}

func (m Model) chosenOptions() map[string][]string {
	chosen := map[string][]string{}
	for _, li := range m.optionList.Items() {
		if opt, ok := li.(optionItem); ok && opt.selected {
			chosen[opt.rule.Name] = append(chosen[opt.rule.Name], opt.option.Name)
		}
	}
	return chosen
}

// addToCart validates chosen against the dish's rules and adds one of
// it to the cart. It reports whether the dish was added.
func (m *Model) addToCart(item models.MenuItem, chosen map[string][]string) bool {
	if !item.IsAvailable {
		m.error = item.Name + " is not available right now"
		return false
	}
	customisations, err := item.ValidateSelection(chosen)
	if err != nil {
		m.error = err.Error()
		return false
	}
	cr := m.openCart()
	if cr == nil {
		return false
	}
	cr.Add(models.CartItem{
		ID:             item.ID,
		Name:           item.Name,
		Price:          models.UnitPrice(item.Price, customisations),
		Quantity:       1,
		Image:          item.Image,
		Customisations: customisations,
	})
	m.error = ""
	t := notify.Toast{Kind: notify.KindSuccess, Message: item.Name + " added to your cart", Time: time.Now()}
	m.toast = &t
	return true
}

// View renders the UI
func (m Model) View() string {
	switch m.currentView {
	case viewSession:
		return docStyle.Render(m.sessionView())
	case viewMenu:
		body := m.menuList.View()
		if m.loading {
			body = m.spinner.View() + " Loading menu..."
		}
		return docStyle.Render(body + m.footer("\nPress 'enter' to add a dish, 'esc' to go back\n"))
	case viewOptions:
		return docStyle.Render(m.optionList.View() + m.footer("\n'space' select · 'enter' add to cart · 'esc' back to menu\n"))
	case viewCart:
		return docStyle.Render(m.cartView())
	case viewCheckout:
		body := titleStyle.Render("Send order") + "\n\n" + m.nameInput.View() + "\n"
		if m.submitting {
			body += m.spinner.View() + " Sending..."
		}
		return docStyle.Render(body + m.footer("\nPress 'enter' to send, 'esc' to cancel\n"))
	case viewLogin:
		return docStyle.Render(titleStyle.Render("Signed out") + "\n\n" + errorStyle.Render(m.error) + "\n\nPress 'q' to quit\n")
	default:
		return "Loading..."
	}
}

func (m Model) sessionView() string {
	if m.snap == nil {
		return m.spinner.View() + " Loading your table..."
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("%s · Table %d", m.snap.Restaurant.Name, m.snap.TableNumber)))
	b.WriteString("  ")
	b.WriteString(badgeStyle(m.snap.Status.Tone).Render(m.snap.Status.Label))
	b.WriteString("\n\n")

	if !m.snap.Started {
		if prev := m.snap.Previous; prev != nil {
			b.WriteString(badgeStyle(session.StatusBadge(prev.Status).Tone).Render("Last session " + session.StatusBadge(prev.Status).Label))
			if prev.Total != nil {
				b.WriteString(fmt.Sprintf("  Total: %s", prev.Total.StringFixed(2)))
			}
			b.WriteString("\n\n")
		}
		b.WriteString(infoStyle.Render("Your table has no open session yet. Ask a waiter to start one."))
		b.WriteString("\n")
		return b.String() + m.footer("\nPress 'r' to refresh, 'q' to quit\n")
	}

	if len(m.snap.Orders) == 0 {
		b.WriteString(mutedStyle.Render("No orders yet"))
	} else {
		b.WriteString(m.orders.View())
	}
	b.WriteString("\n\n")
	b.WriteString(fmt.Sprintf("Running total: %s\n\n", m.snap.RunningTotal.StringFixed(2)))
	b.WriteString(m.billButton())
	b.WriteString("\n")

	return b.String() + m.footer("\n'm' menu · 'c' cart · 'b' request bill · 'r' refresh · 'q' quit\n")
}

func (m Model) billButton() string {
	switch {
	case m.billPending:
		return disabledButtonStyle.Render(m.spinner.View() + " Requesting bill")
	case m.snap.BillRequested:
		return disabledButtonStyle.Render("Bill requested")
	case !m.CanRequestBill():
		return disabledButtonStyle.Render("Request bill")
	}
	return buttonStyle.Render("Request bill")
}

func (m Model) cartView() string {
	cr := m.openCart()
	if cr == nil {
		return titleStyle.Render("Cart") + "\n\n" + mutedStyle.Render("No open session")
	}
	body := titleStyle.Render("Cart") + "\n\n"
	if cr.Len() == 0 {
		body += mutedStyle.Render("Your cart is empty") + "\n"
	} else {
		body += m.cartTable.View() + "\n\n"
		body += fmt.Sprintf("%d items · %s\n", cr.NumberOfItems(), cr.TotalValue().StringFixed(2))
	}
	return body + m.footer("\n'+'/'-' quantity · 'x' remove · 'o' send order · 'esc' back\n")
}

func (m Model) footer(help string) string {
	if m.toast != nil {
		help += toastStyle(m.toast.Kind).Render(m.toast.Message) + "\n"
	}
	if m.error != "" {
		help += errorStyle.Render(m.error) + "\n"
	}
	return help
}

// loadSession reads the table snapshot through the cache
func loadSession(d Deps) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		snap, err := d.View.Load(ctx, d.Slug, d.Table)
		if err != nil {
			return errorMsg{err: fmt.Sprintf("Error loading your table: %v", err)}
		}
		return loadedMsg{snap: snap}
	}
}

// refreshSession refetches the session and its orders
func refreshSession(d Deps) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		snap, err := d.View.Refresh(ctx, d.Slug, d.Table)
		if err != nil {
			return errorMsg{err: fmt.Sprintf("Error refreshing your table: %v", err)}
		}
		return loadedMsg{snap: snap}
	}
}

func requestBill(d Deps) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		snap, err := d.View.RequestBill(ctx, d.Slug, d.Table)
		return billMsg{snap: snap, err: err}
	}
}

func submitOrder(d Deps, cr *cart.Cart, sess *models.TableSession, name string) tea.Cmd {
	return func() tea.Msg {
		if name != "" {
			_ = d.Carts.SetCustomerName(d.Slug, name)
		} else {
			name = d.Carts.CustomerName(d.Slug)
		}
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		orders, err := d.Checkout.Submit(ctx, cr, sess, name)
		return checkoutMsg{orders: orders, err: err}
	}
}

// fetchMenu loads the menu's dishes, falling back to per-category item
// lookups when the menu comes without them.
func fetchMenu(d Deps) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		menu, err := d.Menus.Menu(ctx, d.MenuID)
		if err != nil {
			return errorMsg{err: fmt.Sprintf("Error fetching the menu: %v", err)}
		}
		var items []models.MenuItem
		for _, cat := range menu.Categories {
			catItems := cat.Items
			if len(catItems) == 0 {
				catItems, err = d.Menus.Items(ctx, cat.ID)
				if err != nil {
					return errorMsg{err: fmt.Sprintf("Error fetching %s: %v", cat.Name, err)}
				}
			}
			items = append(items, catItems...)
		}
		return menuMsg{items: items}
	}
}

func waitForSnapshot(ch <-chan *session.Snapshot) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		snap, ok := <-ch
		return snapshotMsg{snap: snap, closed: !ok}
	}
}

func waitForToast(ch <-chan notify.Toast) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		t, ok := <-ch
		if !ok {
			return nil
		}
		return toastMsg(t)
	}
}

func waitForRedirect(ch <-chan string) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		route, ok := <-ch
		if !ok {
			return nil
		}
		return redirectMsg(route)
	}
}
