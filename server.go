// Copyright (c) 2024 mStar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package main

import (
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/mstarongithub/wayward/commands"
	"github.com/mstarongithub/wayward/config"
	"github.com/mstarongithub/wayward/desktop"
	"github.com/mstarongithub/wayward/ipc"
	"github.com/mstarongithub/wayward/loop"
	"github.com/mstarongithub/wayward/tree"
	"github.com/mstarongithub/wayward/view"
	"github.com/sirupsen/logrus"
	"github.com/swaywm/go-wlroots/wlroots"
	"github.com/swaywm/go-wlroots/xkb"
)

type CursorMode int

const (
	CursorModePassThrough CursorMode = iota
	CursorModeMove
	CursorModeResize
)

// Server is the wlroots side of the compositor. Everything in here, the
// desktop included, runs on the wayland event loop: Run dispatches the
// desktop's own loop after every wayland iteration.
type Server struct {
	display     wlroots.Display
	backend     wlroots.Backend
	renderer    wlroots.Renderer
	allocator   wlroots.Allocator
	scene       wlroots.Scene
	sceneLayout wlroots.SceneOutputLayout

	xdgShell  wlroots.XDGShell
	toplevels map[wlroots.XDGTopLevel]*toplevel

	cursor    wlroots.Cursor
	cursorMgr wlroots.XCursorManager

	seat        wlroots.Seat
	keyboards   []*Keyboard
	cursorMode  CursorMode
	grabbed     *toplevel
	grabX       float64
	grabY       float64
	grabBox     tree.Box
	resizeEdges wlroots.Edges

	outputLayout wlroots.OutputLayout
	outputs      map[string]*output

	desktop  *desktop.Desktop
	runner   *commands.Runner
	comp     *compositor
	placer   *wlScene
	bindings map[xkb.KeySym]string
	// Window the keyboard focus was last given to
	focused tree.ID
	stopped atomic.Bool
}

type Keyboard struct {
	dev wlroots.InputDevice
}

// dispatch runs the desktop's pending work and brings wlroots up to date
// with whatever got applied
func (server *Server) dispatch() {
	server.desktop.Loop.Dispatch()
	server.pollCommits()
	server.placer.restack()
	server.syncFocus()
}

// pollCommits feeds the current geometry of every toplevel into its view.
// Locked views are fed every time, their client may already have the
// configured size.
func (server *Server) pollCommits() {
	for _, t := range server.toplevels {
		if t.view == nil {
			continue
		}
		geo := t.surface.Geometry()
		if geo == t.geometry && !t.view.Locked() {
			continue
		}
		t.geometry = geo
		t.view.HandleCommit(view.Commit{Geometry: tree.Box{
			X:      float64(geo.X),
			Y:      float64(geo.Y),
			Width:  float64(geo.Width),
			Height: float64(geo.Height),
		}})
	}
}

// syncFocus hands keyboard focus to the window focused in the current state
func (server *Server) syncFocus() {
	w := ipc.FocusedWindow(server.desktop.Root)
	if w == nil {
		server.focused = 0
		return
	}
	if w.ID() == server.focused {
		return
	}
	t := server.toplevelOf(w)
	if t == nil {
		return
	}
	server.focused = w.ID()
	server.focusTopLevel(t)
}

func (server *Server) toplevelOf(w *tree.Window) *toplevel {
	for _, t := range server.toplevels {
		if t.view != nil && t.view.Window() == w {
			return t
		}
	}
	return nil
}

func (server *Server) focusTopLevel(t *toplevel) {
	/* Note: this function only deals with keyboard focus. */
	surface := t.surface.Surface()
	prevSurface := server.seat.KeyboardState().FocusedSurface()
	if prevSurface == surface {
		/* Don't re-focus an already focused surface. */
		return
	}
	if !prevSurface.Nil() {
		/* Let the previously focused client know, so it stops drawing a caret and such */
		prevTopLevel, err := prevSurface.XDGTopLevel()
		if err == nil {
			prevTopLevel.SetActivated(false)
		}
	}
	logrus.WithField("window", t.view.Window().String()).Debugln("Keyboard focus")
	t.topLevel.SetActivated(true)
	/* wlroots sends key events to the entered surface from now on */
	server.seat.NotifyKeyboardEnter(surface, server.seat.Keyboard())
}

// focusWindow makes the window under the pointer the focused one
func (server *Server) focusWindow(t *toplevel) {
	w := t.view.Window()
	ws := w.Pending.Workspace
	if ws == nil {
		return
	}
	ws.Focus(w)
}

func (server *Server) handleNewPointer(dev wlroots.InputDevice) {
	/* All pointer handling is proxied through wlr_cursor */
	server.cursor.AttachInputDevice(dev)
}

func (server *Server) handleKey(keyboard wlroots.Keyboard, time uint32, keyCode uint32, updateState bool, state wlroots.KeyState) {
	// translate libinput keycode to xkbcommon and obtain keysyms
	syms := keyboard.XKBState().Syms(xkb.KeyCode(keyCode + 8))

	handled := false
	modifiers := keyboard.Modifiers()
	if (modifiers&wlroots.KeyboardModifierAlt != 0) && state == wlroots.KeyStatePressed {
		/* Alt held down and a key pressed, try it as a compositor keybinding */
		for _, sym := range syms {
			if server.handleKeyBinding(sym) {
				handled = true
			}
		}
	}

	if !handled {
		/* Otherwise, we pass it along to the client. */
		server.seat.SetKeyboard(keyboard.Base())
		server.seat.NotifyKeyboardKey(time, keyCode, state)
		return
	}
	server.dispatch()
}

func (server *Server) handleNewKeyboard(dev wlroots.InputDevice) {
	keyboard := dev.Keyboard()

	/* Default xkb keymap, i.e. layout "us" */
	context := xkb.NewContext(xkb.KeySymFlagNoFlags)
	keymap := context.KeyMap()
	keyboard.SetKeymap(keymap)
	keymap.Destroy()
	context.Destroy()
	keyboard.SetRepeatInfo(25, 600)

	keyboard.OnModifiers(func(keyboard wlroots.Keyboard) {
		server.seat.SetKeyboard(dev)
		server.seat.NotifyKeyboardModifiers(keyboard)
	})
	keyboard.OnKey(server.handleKey)

	server.seat.SetKeyboard(dev)
	server.keyboards = append(server.keyboards, &Keyboard{dev: dev})
}

func (server *Server) handleNewInput(dev wlroots.InputDevice) {
	switch dev.Type() {
	case wlroots.InputDeviceTypePointer:
		server.handleNewPointer(dev)
	case wlroots.InputDeviceTypeKeyboard:
		server.handleNewKeyboard(dev)
	}

	/* There always is a cursor, even without pointer devices */
	caps := wlroots.SeatCapabilityPointer
	if len(server.keyboards) > 0 {
		caps |= wlroots.SeatCapabilityKeyboard
	}
	server.seat.SetCapabilities(caps)
}

// topLevelAt returns the toplevel and surface at the given layout coordinates
// along with the surface local coordinates
func (server *Server) topLevelAt(lx float64, ly float64) (*toplevel, *wlroots.Surface, float64, float64) {
	node, sx, sy := server.scene.Tree().Node().At(lx, ly)
	if node.Nil() || node.Type() != wlroots.SceneNodeBuffer {
		return nil, nil, 0, 0
	}
	sceneSurface := node.SceneBuffer().SceneSurface()
	if sceneSurface.Nil() {
		return nil, nil, 0, 0
	}
	surface := sceneSurface.Surface()
	t := server.toplevels[surface.XDGSurface().TopLevel()]
	return t, &surface, sx, sy
}

func (server *Server) handleFrame(o wlroots.Output) {
	/* Called every time an output is ready to display a frame, generally at its refresh rate */
	server.dispatch()

	sOut, err := server.scene.SceneOutput(o)
	if err != nil {
		return
	}
	/* Render the scene if needed and commit the output */
	sOut.Commit()
	sOut.SendFrameDone(time.Now())
}

func (server *Server) handleOutputRequestState(o wlroots.Output, state wlroots.OutputState) {
	/* Nested backends request a new mode when their window is resized */
	logrus.WithField("output", o.Name()).Debugln("New state request for output")
	o.CommitState(state)
}

func (server *Server) handleOutputDestroy(o wlroots.Output) {
	logrus.WithField("name", o.Name()).Infoln("Output getting destroyed")
	out, ok := server.outputs[o.Name()]
	if !ok {
		return
	}
	delete(server.outputs, o.Name())
	out.node.BeginDestroy()
	server.dispatch()
}

func (server *Server) handleNewOutput(o wlroots.Output) {
	logrus.WithField("name", o.Name()).Infoln("New output added")

	/* Use our allocator and renderer. Must be done once, before commiting the output */
	o.InitRender(server.allocator, server.renderer)

	/* The output may be disabled, switch it on with its preferred mode */
	oState := wlroots.NewOutputState()
	oState.StateInit()
	oState.StateSetEnabled(true)
	mode := nestedMode
	if preferred, err := o.PrefferedMode(); err == nil {
		oState.SetMode(preferred)
		mode = tree.Mode{
			Width:   int(preferred.Width()),
			Height:  int(preferred.Height()),
			Refresh: int(preferred.Refresh()),
		}
	}
	o.CommitState(oState)
	oState.Finish()

	o.OnFrame(server.handleFrame)
	o.OnRequestState(server.handleOutputRequestState)
	o.OnDestroy(server.handleOutputDestroy)

	/* Outputs are laid out left to right, the same as the tree does it */
	lOutput := server.outputLayout.AddOutputAuto(o)
	sceneOutput := server.scene.NewOutput(o)
	server.sceneLayout.AddOutput(lOutput, sceneOutput)

	out := &output{wlr: o}
	server.outputs[o.Name()] = out
	out.node = server.desktop.AddOutput(o.Name(), mode, out)

	if err := o.SetTitle(fmt.Sprintf("wayward - %s", o.Name())); err != nil {
		logrus.WithError(err).Debugln("Output has no title to set")
	}
}

func (server *Server) handleCursorMotion(dev wlroots.InputDevice, time uint32, dx float64, dy float64) {
	/* Relative motion, the cursor constrains it to the output layout */
	server.cursor.Move(dev, dx, dy)
	server.processCursorMotion(time)
}

func (server *Server) handleCursorMotionAbsolute(dev wlroots.InputDevice, time uint32, x float64, y float64) {
	/* Absolute motion from 0..1 on each axis, e.g. when running nested */
	server.cursor.WarpAbsolute(dev, x, y)
	server.processCursorMotion(time)
}

func (server *Server) processCursorMotion(time uint32) {
	switch server.cursorMode {
	case CursorModeMove:
		server.processCursorMove()
		return
	case CursorModeResize:
		server.processCursorResize()
		return
	}

	t, surface, sx, sy := server.topLevelAt(server.cursor.X(), server.cursor.Y())
	if t == nil {
		/* Default cursor image when not above a window */
		server.cursor.SetXCursor(server.cursorMgr, "default")
	}
	if surface != nil {
		/* wlroots filters duplicate enter and motion events itself */
		server.seat.NotifyPointerEnter(*surface, sx, sy)
		server.seat.NotifyPointerMotion(time, sx, sy)
	} else {
		/* Clear pointer focus so button events don't go to the last client under the pointer */
		server.seat.ClearPointerFocus()
	}
}

// Interactive moves and resizes only change the pending box of a floating
// window. The client follows through a regular transaction.
func (server *Server) processCursorMove() {
	box := server.grabBox
	box.X = server.cursor.X() - server.grabX
	box.Y = server.cursor.Y() - server.grabY
	server.setGrabbedBox(box)
}

func (server *Server) processCursorResize() {
	x, y := server.cursor.X(), server.cursor.Y()
	left := server.grabBox.X
	right := server.grabBox.X + server.grabBox.Width
	top := server.grabBox.Y
	bottom := server.grabBox.Y + server.grabBox.Height

	if server.resizeEdges&wlroots.EdgeTop != 0 {
		top = min(y, bottom-1)
	} else if server.resizeEdges&wlroots.EdgeBottom != 0 {
		bottom = max(y, top+1)
	}
	if server.resizeEdges&wlroots.EdgeLeft != 0 {
		left = min(x, right-1)
	} else if server.resizeEdges&wlroots.EdgeRight != 0 {
		right = max(x, left+1)
	}
	server.setGrabbedBox(tree.Box{X: left, Y: top, Width: right - left, Height: bottom - top})
}

func (server *Server) setGrabbedBox(box tree.Box) {
	if server.grabbed == nil || server.grabbed.view == nil {
		return
	}
	server.grabbed.view.Window().SetFloatingBox(box)
	server.dispatch()
}

func (server *Server) handleSetCursorRequest(client wlroots.SeatClient, surface wlroots.Surface, _ uint32, hotspotX int32, hotspotY int32) {
	/* Any client can send this, only the one with pointer focus gets to set the image */
	if server.seat.PointerState().FocusedClient() == client {
		server.cursor.SetSurface(surface, hotspotX, hotspotY)
	}
}

func (server *Server) resetCursorMode() {
	server.cursorMode = CursorModePassThrough
	server.grabbed = nil
}

func (server *Server) handleCursorButton(_ wlroots.InputDevice, time uint32, button uint32, state wlroots.ButtonState) {
	/* Notify the client with pointer focus that a button press has occurred */
	server.seat.NotifyPointerButton(time, button, state)

	if state == wlroots.ButtonStateReleased {
		/* Releasing any button ends an interactive move or resize */
		server.resetCursorMode()
		return
	}
	t, _, _, _ := server.topLevelAt(server.cursor.X(), server.cursor.Y())
	if t == nil || t.view == nil {
		return
	}
	server.focusWindow(t)
	server.dispatch()
}

func (server *Server) handleCursorAxis(_ wlroots.InputDevice, time uint32, source wlroots.AxisSource, orientation wlroots.AxisOrientation, delta float64, deltaDiscrete int32) {
	server.seat.NotifyPointerAxis(time, orientation, delta, deltaDiscrete, source)
}

func (server *Server) handleCursorFrame() {
	/* Groups the pointer events sent since the last frame */
	server.seat.NotifyPointerFrame()
}

// handleKeyBinding assumes Alt is held down
func (server *Server) handleKeyBinding(sym xkb.KeySym) bool {
	if sym == xkb.KeySymEscape {
		server.Stop()
		return true
	}
	command, ok := server.bindings[sym]
	if !ok {
		return false
	}
	if err := server.runner.Run(command); err != nil {
		logrus.WithError(err).WithField("command", command).Warnln("Keybinding failed")
	}
	return true
}

func (server *Server) handleMapXDGToplevel(xdgSurface wlroots.XDGSurface) {
	/* The surface is ready to be displayed, give it a window */
	t, ok := server.toplevels[xdgSurface.TopLevel()]
	if !ok || t.view != nil {
		return
	}
	t.geometry = xdgSurface.Geometry()
	t.view = server.desktop.Map(t, &view.GeometryAck{})
	server.dispatch()
}

func (server *Server) handleUnMapXDGToplevel(xdgSurface wlroots.XDGSurface) {
	t, ok := server.toplevels[xdgSurface.TopLevel()]
	if !ok || t.view == nil {
		return
	}
	if server.grabbed == t {
		server.resetCursorMode()
	}
	t.view.Unmap()
	t.view = nil
	server.dispatch()
}

func (server *Server) handleNewXDGSurface(xdgSurface wlroots.XDGSurface) {
	/* Either a toplevel (application window) or a popup */
	if xdgSurface.Role() == wlroots.XDGSurfaceRolePopup {
		parent := xdgSurface.Popup().Parent()
		if parent.Nil() {
			logrus.WithField("surface", xdgSurface).Warnln("Popup without a parent, ignoring it")
			return
		}
		xdgSurface.SetData(parent.XDGSurface().SceneTree().NewXDGSurface(xdgSurface))
		return
	}
	if xdgSurface.Role() != wlroots.XDGSurfaceRoleTopLevel {
		logrus.WithField("role", xdgSurface.Role()).Warnln("Ignoring xdg surface without a role")
		return
	}

	xdgSurface.SetData(server.scene.Tree().NewXDGSurface(xdgSurface.TopLevel().Base()))
	t := &toplevel{
		surface:  xdgSurface,
		topLevel: xdgSurface.TopLevel(),
	}
	server.toplevels[t.topLevel] = t
	xdgSurface.OnMap(server.handleMapXDGToplevel)
	xdgSurface.OnUnmap(server.handleUnMapXDGToplevel)
	xdgSurface.OnDestroy(func(surface wlroots.XDGSurface) {
		delete(server.toplevels, t.topLevel)
	})

	t.topLevel.OnRequestMove(func(client wlroots.SeatClient, serial uint32) {
		server.beginInteractive(t, CursorModeMove, 0)
	})
	t.topLevel.OnRequestResize(func(client wlroots.SeatClient, serial uint32, edges wlroots.Edges) {
		server.beginInteractive(t, CursorModeResize, edges)
	})
}

// beginInteractive starts moving or resizing a floating window with the pointer
func (server *Server) beginInteractive(t *toplevel, mode CursorMode, edges wlroots.Edges) {
	if t.surface.Surface() != server.seat.PointerState().FocusedSurface() {
		/* Deny move/resize requests from unfocused clients. */
		return
	}
	if t.view == nil || !t.view.Window().Pending.Floating {
		return
	}
	box := t.view.Window().Pending.Box
	server.grabbed = t
	server.cursorMode = mode
	server.grabBox = box
	server.grabX = server.cursor.X() - box.X
	server.grabY = server.cursor.Y() - box.Y
	server.resizeEdges = edges
}

// Outputs the backend knows about, by name
func (server *Server) GetOutputs() []*output {
	outputs := make([]*output, 0, len(server.outputs))
	for _, o := range server.outputs {
		outputs = append(outputs, o)
	}
	return outputs
}

func NewServer(conf *config.Config) (server *Server, err error) {
	server = &Server{
		toplevels: make(map[wlroots.XDGTopLevel]*toplevel),
		outputs:   make(map[string]*output),
		bindings:  defaultBindings(),
	}

	/* The Wayland display is managed by libwayland. It handles accepting
	 * clients from the Unix socket, manging Wayland globals, and so on. */
	server.display = wlroots.NewDisplay()

	/* Picks the most suitable backend for the current environment, like an
	 * X11 window when an X11 server is running */
	server.backend, err = server.display.BackendAutocreate()
	if err != nil {
		return nil, err
	}

	/* Pixman, GLES2 or Vulkan. WLR_RENDERER picks a specific one. */
	server.renderer, err = server.backend.RendererAutoCreate()
	if err != nil {
		return nil, err
	}
	server.renderer.InitDisplay(server.display)

	/* The bridge between the renderer and the backend */
	server.allocator, err = server.backend.AllocatorAutocreate(server.renderer)
	if err != nil {
		return nil, err
	}

	server.display.CompositorCreate(5, server.renderer)
	server.display.SubCompositorCreate()
	server.display.DataDeviceManagerCreate()

	server.outputLayout = wlroots.NewOutputLayout()

	server.scene = wlroots.NewScene()
	server.sceneLayout = server.scene.AttachOutputLayout(server.outputLayout)

	/* The desktop runs on the wayland event loop, see dispatch */
	server.placer = newWLScene(server)
	server.desktop, err = desktop.New(conf, loop.New(), server.placer)
	if err != nil {
		return nil, fmt.Errorf("creating desktop: %w", err)
	}
	server.comp = newCompositor(conf, server.desktop)
	server.runner = server.comp.runner

	/* Outputs join the desktop, so it has to exist first */
	server.backend.OnNewOutput(server.handleNewOutput)

	server.xdgShell = server.display.XDGShellCreate(3)
	server.xdgShell.OnNewSurface(server.handleNewXDGSurface)

	/* wlr_cursor only displays an image, we move it from the input events below */
	server.cursor = wlroots.NewCursor()
	server.cursor.AttachOutputLayout(server.outputLayout)
	server.cursorMgr = wlroots.NewXCursorManager("", 24)

	server.cursorMode = CursorModePassThrough
	server.cursor.OnMotion(server.handleCursorMotion)
	server.cursor.OnMotionAbsolute(server.handleCursorMotionAbsolute)
	server.cursor.OnButton(server.handleCursorButton)
	server.cursor.OnAxis(server.handleCursorAxis)
	server.cursor.OnFrame(server.handleCursorFrame)
	server.cursorMgr.Load(1)

	server.backend.OnNewInput(server.handleNewInput)
	server.seat = server.display.SeatCreate("seat0")
	server.seat.OnSetCursorRequest(server.handleSetCursorRequest)

	return
}

func (server *Server) Start() error {
	/* Add a Unix socket to the Wayland display. */
	socket, err := server.display.AddSocketAuto()
	if err != nil {
		server.backend.Destroy()
		return err
	}
	logrus.WithField("socket", socket).Debugln("got wl socket")

	/* Enumerates outputs and inputs, becomes the DRM master, etc */
	if err = server.backend.Start(); err != nil {
		server.backend.Destroy()
		server.display.Destroy()
		return err
	}

	/* Programs started from wayward connect to this display */
	if res := os.Getenv("WAYLAND_DISPLAY"); res != "" {
		logrus.WithField("WAYLAND_DISPLAY", res).Debugln("Wayland display already set, overwriting")
	}
	if err = os.Setenv("WAYLAND_DISPLAY", socket); err != nil {
		return err
	}

	logrus.WithField("WAYLAND_DISPLAY", socket).Infoln("Running Wayland compositor")
	return nil
}

// idleTimeout bounds how long the wayland event loop blocks, so work posted to
// the desktop loop from other goroutines is picked up without input or frames
const idleTimeout = 16 * time.Millisecond

// Run drives the wayland event loop and the desktop loop together until Stop.
// Transaction timeouts fire even when no output renders a frame.
func (server *Server) Run() error {
	evl := server.display.EventLoop()
	for !server.stopped.Load() {
		server.display.FlushClients()
		evl.Dispatch(server.desktop.Loop.Timeout(idleTimeout))
		server.dispatch()
	}

	server.display.DestroyClients()
	server.desktop.Loop.Close()
	server.comp.Close()
	server.desktop.Destroy()
	server.scene.Tree().Node().Destroy()
	server.cursorMgr.Destroy()
	server.outputLayout.Destroy()
	server.display.Destroy()
	return nil
}

// Stop makes Run return after its current iteration. Safe to call from any goroutine
func (server *Server) Stop() {
	server.stopped.Store(true)
}
