package messages

import (
	"bytes"
	"fmt"
	"io"

	flatbuffers "github.com/google/flatbuffers/go"
	messagefb "github.com/kmathys/skirmish/flatbuffers/message"
	"github.com/klauspost/compress/zstd"
)

func SerializeMessage(m *Message) ([]byte, error) {
	b, err := SerializeMessageFlatbuffer(m)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize message: %v", err)
	}

	compressed := bytes.NewBuffer(nil)
	compWriter, err := zstd.NewWriter(compressed, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd writer: %v", err)
	}
	if _, err := compWriter.Write(b); err != nil {
		return nil, fmt.Errorf("failed to compress message: %v", err)
	}
	if err := compWriter.Close(); err != nil {
		return nil, fmt.Errorf("failed to close zstd writer: %v", err)
	}

	return compressed.Bytes(), nil
}

func DeserializeMessage(data []byte) (*Message, error) {
	compReader, err := zstd.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd reader: %v", err)
	}
	defer compReader.Close()
	b, err := io.ReadAll(compReader)
	if err != nil {
		return nil, fmt.Errorf("failed to read decompressed message: %v", err)
	}

	message, err := DeserializeMessageFlatbuffer(b)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize message: %v", err)
	}

	return message, nil
}

func SerializeMessageFlatbuffer(m *Message) ([]byte, error) {
	builder := flatbuffers.NewBuilder(0)

	payload := builder.CreateByteVector(m.Payload)

	messagefb.MessageStart(builder)
	messagefb.MessageAddClientId(builder, m.ClientID)
	messagefb.MessageAddType(builder, byte(m.Type))
	messagefb.MessageAddPayload(builder, payload)
	messageOffset := messagefb.MessageEnd(builder)
	builder.Finish(messageOffset)

	return builder.FinishedBytes(), nil
}

func DeserializeMessageFlatbuffer(b []byte) (*Message, error) {
	message := &Message{}
	messageFlatbuffer := messagefb.GetRootAsMessage(b, 0)
	message.ClientID = messageFlatbuffer.ClientId()
	message.Type = MessageType(messageFlatbuffer.Type())
	message.Payload = messageFlatbuffer.PayloadBytes()

	return message, nil
}
