/*
 * Copyright 2024 The WeaveGo Authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package aes

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/hex"
	"errors"
	"testing"

	"github.com/weavego/weavego/test/assert"
)

func TestNormalizeKey(t *testing.T) {
	// 短密钥补'0'
	key1 := normalizeKey([]byte("short"))
	assert.Equal(t, 32, len(key1))
	assert.Equal(t, "short000000000000000000000000000", string(key1))

	// 正好32字节
	key2 := normalizeKey([]byte("exactlythirtytwobyteslongkey1234"))
	assert.Equal(t, 32, len(key2))
	assert.Equal(t, "exactlythirtytwobyteslongkey1234", string(key2))

	// 超长截断
	key3 := normalizeKey([]byte("thisisalongerkeythanthirtytwobytes1234567890"))
	assert.Equal(t, 32, len(key3))
	assert.Equal(t, "thisisalongerkeythanthirtytwobyt", string(key3))
}

func TestAesRoundTrip(t *testing.T) {
	key := []byte("secret")
	plaintext := "Hello, World!"

	encrypted, err := Encrypt(plaintext, key)
	assert.Nil(t, err)
	decrypted, err := Decrypt(encrypted, key)
	assert.Nil(t, err)
	assert.Equal(t, plaintext, decrypted)

	// 空明文
	encrypted, err = Encrypt("", key)
	assert.Nil(t, err)
	decrypted, err = Decrypt(encrypted, key)
	assert.Nil(t, err)
	assert.Equal(t, "", decrypted)

	// 超长密钥和短密钥都归一化到32字节
	for _, k := range [][]byte{
		[]byte("thisisareallylongkeythatwillbetruncated1234567890"),
		[]byte("shortk"),
	} {
		encrypted, err = Encrypt(plaintext, k)
		assert.Nil(t, err)
		decrypted, err = Decrypt(encrypted, k)
		assert.Nil(t, err)
		assert.Equal(t, plaintext, decrypted)
	}
}

func TestDecryptErrors(t *testing.T) {
	key := []byte("secret")

	// 非hex输入
	_, err := Decrypt("not a hex string", key)
	assert.NotNil(t, err)

	// 短于 IV+一个分组
	_, err = Decrypt(hex.EncodeToString(make([]byte, aes.BlockSize)), key)
	assert.True(t, errors.Is(err, ErrInvalidCiphertext))

	// 非分组整数倍
	_, err = Decrypt(hex.EncodeToString(make([]byte, aes.BlockSize*2+1)), key)
	assert.True(t, errors.Is(err, ErrInvalidCiphertext))

	// 填充被破坏
	block, _ := aes.NewCipher(normalizeKey(key))
	iv := make([]byte, aes.BlockSize)
	padded := make([]byte, aes.BlockSize)
	for i := range padded {
		padded[i] = byte(aes.BlockSize)
	}
	padded[len(padded)-1] = 0x00
	ciphertext := make([]byte, aes.BlockSize+len(padded))
	copy(ciphertext[:aes.BlockSize], iv)
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext[aes.BlockSize:], padded)

	_, err = Decrypt(hex.EncodeToString(ciphertext), key)
	assert.True(t, errors.Is(err, ErrInvalidPadding))
}
