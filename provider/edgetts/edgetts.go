// Package edgetts implements speech synthesis over the Microsoft Edge
// read-aloud websocket endpoint. It needs no credentials, which makes it the
// last-resort fallback when the paid backends are unconfigured.
package edgetts

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/pitchcast/pitch-orchestrator/config"
	"github.com/pitchcast/pitch-orchestrator/provider"
)

// Name identifies the Edge TTS provider by name.
const Name = "edgetts"

const (
	trustedClientToken = "6A5AA1D4EAFF4E9FB37E23D68491D6F4"
	wsEndpoint         = "wss://speech.platform.bing.com/consumer/speech/synthesize/" +
		"readaloud/edge/v1?TrustedClientToken=" + trustedClientToken
	outputFormat = "audio-24khz-48kbitrate-mono-mp3"

	// synthesisTimeout bounds one whole synthesis exchange, matching the
	// 2-minute http.Client timeout the HTTP-based providers carry. Without
	// it a silent endpoint would block ReadMessage forever.
	synthesisTimeout = 2 * time.Minute
)

func init() {
	if err := provider.RegisterTTS(Name, factory); err != nil {
		fmt.Printf("registering edgetts factory: %v\n", err)
	}
}

// voiceAliases maps the voice ids the rest of the system uses to Edge Neural
// voice names, so a job configured for another backend degrades cleanly.
var voiceAliases = map[string]string{
	"female-shaonv":    "en-US-AnaNeural",
	"female-yujie":     "en-US-AriaNeural",
	"male-qn-qingse":   "en-US-GuyNeural",
	"male-qn-jingying": "en-US-ChristopherNeural",
	"presenter_male":   "en-US-EricNeural",
	"presenter_female": "en-US-JennyNeural",
}

var builtinVoices = map[string]string{
	"en-US-JennyNeural":       "Female, friendly",
	"en-US-AriaNeural":        "Female, newscast",
	"en-US-GuyNeural":         "Male, conversational",
	"en-US-ChristopherNeural": "Male, authoritative",
	"en-US-EricNeural":        "Male, presenter",
	"en-GB-SoniaNeural":       "Female, British",
}

type ttsProvider struct {
	defaultVoice string
	endpoint     string
	timeout      time.Duration
	dialer       *websocket.Dialer
}

func factory(cfg *config.Config) (provider.TTSProvider, error) {
	voice := cfg.EdgeTTS.DefaultVoice
	if voice == "" {
		voice = "en-US-JennyNeural"
	}
	return &ttsProvider{
		defaultVoice: voice,
		endpoint:     wsEndpoint,
		timeout:      synthesisTimeout,
		dialer:       &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
	}, nil
}

func (p *ttsProvider) Name() string { return Name }

func (p *ttsProvider) resolveVoice(id string) string {
	if id == "" {
		return p.defaultVoice
	}
	if alias, ok := voiceAliases[id]; ok {
		return alias
	}
	return id
}

func (p *ttsProvider) Synthesize(ctx context.Context, req provider.SpeechRequest) (*provider.SpeechResult, error) {
	speed := req.Speed
	if speed == 0 {
		speed = 1.0
	}
	voice := p.resolveVoice(req.VoiceID)

	connID := strings.ReplaceAll(uuid.NewString(), "-", "")
	conn, _, err := p.dialer.DialContext(ctx, p.endpoint+"&ConnectionId="+connID, nil)
	if err != nil {
		return nil, fmt.Errorf("dialing edge tts: %w", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(p.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	conn.SetReadDeadline(deadline)
	conn.SetWriteDeadline(deadline)

	if err := conn.WriteMessage(websocket.TextMessage, speechConfig()); err != nil {
		return nil, fmt.Errorf("sending speech config: %w", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, ssmlMessage(connID, voice, req.Text, speed)); err != nil {
		return nil, fmt.Errorf("sending ssml: %w", err)
	}

	audio, err := collectAudio(conn)
	if err != nil {
		return nil, err
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("edge tts: no audio frames received")
	}

	words := len(strings.Fields(req.Text))
	secs := float64(words) / 150 * 60 / speed
	return &provider.SpeechResult{
		Audio:      audio,
		Format:     "mp3",
		SampleRate: 24000,
		Duration:   time.Duration(secs * float64(time.Second)),
	}, nil
}

// collectAudio drains frames until the service signals turn.end. Binary
// frames carry a big-endian header length, the text header, then raw audio.
func collectAudio(conn *websocket.Conn) ([]byte, error) {
	var audio bytes.Buffer
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return nil, fmt.Errorf("reading edge tts frame: %w", err)
		}
		switch msgType {
		case websocket.TextMessage:
			if strings.Contains(string(data), "Path:turn.end") {
				return audio.Bytes(), nil
			}
		case websocket.BinaryMessage:
			if len(data) < 2 {
				continue
			}
			headerLen := int(binary.BigEndian.Uint16(data[:2]))
			if len(data) < 2+headerLen {
				continue
			}
			header := string(data[2 : 2+headerLen])
			if strings.Contains(header, "Path:audio") {
				audio.Write(data[2+headerLen:])
			}
		}
	}
}

func speechConfig() []byte {
	return []byte("X-Timestamp:" + timestamp() + "\r\n" +
		"Content-Type:application/json; charset=utf-8\r\n" +
		"Path:speech.config\r\n\r\n" +
		`{"context":{"synthesis":{"audio":{"metadataoptions":` +
		`{"sentenceBoundaryEnabled":"false","wordBoundaryEnabled":"false"},` +
		`"outputFormat":"` + outputFormat + `"}}}}`)
}

func ssmlMessage(requestID, voice, text string, speed float64) []byte {
	rate := fmt.Sprintf("%+d%%", int((speed-1.0)*100))
	ssml := `<speak version='1.0' xmlns='http://www.w3.org/2001/10/synthesis' xml:lang='en-US'>` +
		`<voice name='` + voice + `'><prosody pitch='+0Hz' rate='` + rate + `' volume='+0%'>` +
		escapeXML(text) +
		`</prosody></voice></speak>`
	return []byte("X-RequestId:" + requestID + "\r\n" +
		"Content-Type:application/ssml+xml\r\n" +
		"X-Timestamp:" + timestamp() + "\r\n" +
		"Path:ssml\r\n\r\n" + ssml)
}

func escapeXML(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	return r.Replace(s)
}

func timestamp() string {
	return time.Now().UTC().Format("Mon Jan 2 2006 15:04:05 GMT+0000 (Coordinated Universal Time)")
}

func (p *ttsProvider) CloneVoice(context.Context, provider.CloneRequest) (*provider.CloneResult, error) {
	return nil, fmt.Errorf("edge tts does not support voice cloning")
}

func (p *ttsProvider) Voices() map[string]string {
	out := make(map[string]string, len(builtinVoices))
	for k, v := range builtinVoices {
		out[k] = v
	}
	return out
}

func (p *ttsProvider) Close() error { return nil }
