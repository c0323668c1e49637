package commandstructure

import "bytes"

// recordingCommand appends its tag to the payload so tests can observe ordering
type recordingCommand struct {
	name string
	tag  []byte
	err  error
}

func (m *recordingCommand) Name() string {
	return m.name
}

func (m *recordingCommand) Execute(imageData []byte) ([]byte, error) {
	if m.err != nil {
		return nil, m.err
	}
	var buf bytes.Buffer
	buf.Write(imageData)
	buf.Write(m.tag)
	return buf.Bytes(), nil
}

func appendingFactory(tag string) CommandFactory {
	return func(params map[string]any) (Command, error) {
		return &recordingCommand{name: GetStringParam(params, "alias", tag), tag: []byte(tag)}, nil
	}
}
