/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

/*
Package wire implements the Debug Adapter Protocol wire format: the message
model and the header-delimited frame codec.

# Frame Format

Every message travels as one frame:

	Content-Length: <N>\r\n\r\n<N bytes of UTF-8 encoded JSON>

N is the byte length of the UTF-8 encoding of the JSON body. Consecutive
frames are concatenated with no separator beyond the next frame's header.

# Message Model

Three message kinds share a common envelope (seq, type):

  - Request: command plus optional arguments
  - Response: request_seq correlating it to a request, success flag, body
  - Event: event name plus optional body

# Decoding

Decoder accepts arbitrarily chunked input and yields complete bodies in
arrival order. Header blocks without a Content-Length token are discarded
silently; JSON validity of a body is the caller's concern, so one bad
payload never corrupts framing of the frames that follow it.
*/
package wire
