package main

// lineEditor 控制台命令行的编辑状态：光标、水平滚动与命令历史
type lineEditor struct {
	buffer []rune
	cursor int // 光标在 buffer 中的位置
	scroll int // 水平滚动偏移量，用于显示长命令

	history      []string
	maxHistory   int
	historyIndex int    // -1 表示当前不在浏览历史
	historyTemp  string // 开始浏览历史前正在输入的命令
}

func newLineEditor(maxHistory int) *lineEditor {
	return &lineEditor{maxHistory: maxHistory, historyIndex: -1}
}

func (e *lineEditor) String() string {
	return string(e.buffer)
}

// insert 在光标处插入字符
func (e *lineEditor) insert(r rune) {
	e.buffer = append(e.buffer, 0)
	copy(e.buffer[e.cursor+1:], e.buffer[e.cursor:])
	e.buffer[e.cursor] = r
	e.cursor++
}

// backspace 删除光标前的字符
func (e *lineEditor) backspace() {
	if e.cursor == 0 {
		return
	}
	e.buffer = append(e.buffer[:e.cursor-1], e.buffer[e.cursor:]...)
	e.cursor--
}

// move 左右移动光标
func (e *lineEditor) move(delta int) {
	e.cursor += delta
	if e.cursor < 0 {
		e.cursor = 0
	}
	if e.cursor > len(e.buffer) {
		e.cursor = len(e.buffer)
	}
}

// set 替换整行内容，光标移到行尾
func (e *lineEditor) set(s string) {
	e.buffer = []rune(s)
	e.cursor = len(e.buffer)
}

// commit 返回当前命令并清空，非空命令计入历史
func (e *lineEditor) commit() string {
	command := string(e.buffer)
	e.buffer = nil
	e.cursor = 0
	e.scroll = 0
	e.historyIndex = -1

	if command == "" || (len(e.history) > 0 && e.history[len(e.history)-1] == command) {
		return command
	}
	e.history = append(e.history, command)
	if e.maxHistory > 0 && len(e.history) > e.maxHistory {
		e.history = e.history[1:]
	}
	return command
}

// navigate 浏览历史，direction 为 -1 向前、1 向后
func (e *lineEditor) navigate(direction int) {
	if len(e.history) == 0 {
		return
	}

	if e.historyIndex == -1 {
		if direction > 0 {
			return
		}
		e.historyTemp = string(e.buffer)
		e.historyIndex = len(e.history) - 1
		e.set(e.history[e.historyIndex])
		return
	}

	next := e.historyIndex + direction
	switch {
	case next < 0:
		next = 0
	case next >= len(e.history):
		// 越过最新一条，回到正在输入的命令
		e.historyIndex = -1
		e.set(e.historyTemp)
		return
	}
	e.historyIndex = next
	e.set(e.history[next])
}

// visible 返回宽度为 width 的窗口中可见的文本，以及光标在窗口中的列
func (e *lineEditor) visible(width int) (string, int) {
	if width < 1 {
		width = 1
	}
	if e.cursor < e.scroll {
		e.scroll = e.cursor
	} else if e.cursor >= e.scroll+width {
		e.scroll = e.cursor - width + 1
	}

	end := e.scroll + width
	if end > len(e.buffer) {
		end = len(e.buffer)
	}
	return string(e.buffer[e.scroll:end]), e.cursor - e.scroll
}
